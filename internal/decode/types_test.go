// internal/decode/types_test.go
package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tamzrod/postcode-monitor/internal/catalog"
)

func TestDecodedCode_EqualIgnoresText(t *testing.T) {
	a := DecodedCode{Flavor: catalog.FlavorSMC, Index: 1, Code: 0xC1, Severity: catalog.SeverityError, Name: "SMC_FATAL_V12"}
	b := a
	b.Name = "other"
	b.Description = "other"
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())

	b.Severity = catalog.SeverityInfo
	assert.False(t, a.Equal(b))
}

func TestDecodedCode_KeyUsableAsMapKey(t *testing.T) {
	seen := map[Key]int{}
	for _, d := range []DecodedCode{
		{Flavor: catalog.FlavorCPU, Code: 1, Name: "x"},
		{Flavor: catalog.FlavorCPU, Code: 1, Name: "y"},
		{Flavor: catalog.FlavorCPU, Code: 2},
	} {
		seen[d.Key()]++
	}
	assert.Len(t, seen, 2)
}

func TestDecodedCode_Format(t *testing.T) {
	d := DecodedCode{
		Flavor: catalog.FlavorSP, Index: 1, Code: 0x75,
		Name: "SP_BOOT_SUCCESS", Description: "booted",
	}
	assert.Equal(t, "SP   (1): 0075\t- SP_BOOT_SUCCESS\n\t- booted", d.Format())
	assert.Equal(t, "SP(1) 0x0075 SP_BOOT_SUCCESS", d.String())
	assert.Equal(t, "SP(1) 0x0075", DecodedCode{Flavor: catalog.FlavorSP, Index: 1, Code: 0x75}.String())
}
