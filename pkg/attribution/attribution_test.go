package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var homeDomains = []string{"home.example"}

func TestAttributeOutgoingUsesFirstRecipient(t *testing.T) {
	got := Attribute("a@home.example", []string{"b@cust.example"}, homeDomains)
	assert.Equal(t, "cust.example", got)
}

func TestAttributeOutgoingMultipleRecipients(t *testing.T) {
	got := Attribute("a@home.example", []string{"b@cust.example", "c@other.example"}, homeDomains)
	assert.Equal(t, "cust.example", got)
}

func TestAttributeOutgoingSubdomain(t *testing.T) {
	got := Attribute("a@mail.home.example", []string{"b@cust.example"}, homeDomains)
	assert.Equal(t, "cust.example", got)
}

func TestAttributeIncomingUsesSenderDomain(t *testing.T) {
	got := Attribute("b@cust.example", []string{"a@home.example"}, homeDomains)
	assert.Equal(t, "cust.example", got)
}

func TestAttributeEmptySender(t *testing.T) {
	assert.Equal(t, UnknownCompany, Attribute("", []string{"b@cust.example"}, homeDomains))
}

func TestAttributeOutgoingWithoutRecipients(t *testing.T) {
	assert.Equal(t, UnknownCompany, Attribute("a@home.example", nil, homeDomains))
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "cust.example", Domain("B@CUST.Example"))
	assert.Equal(t, "nodomain", Domain("NoDomain"))
}

func TestSafeKey(t *testing.T) {
	assert.Equal(t, "mueller-maschinenbau_de", SafeKey("mueller-maschinenbau.de"))
	assert.Equal(t, "info_cust_example", SafeKey("info@cust.example"))
}
