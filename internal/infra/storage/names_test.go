package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidName(t *testing.T) {
	cases := map[string]bool{
		"202401_NFs_Cabecalho.csv": true,
		"with space.csv":           true,
		"..data.csv":               true,
		"":                         false,
		".":                        false,
		"..":                       false,
		"../x.csv":                 false,
		"dir/x.csv":                false,
		`dir\x.csv`:                false,
		"x\x00.csv":                false,
	}
	for name, want := range cases {
		assert.Equal(t, want, validName(name), "validName(%q)", name)
	}
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", normalizePrefix(""))
	assert.Equal(t, "", normalizePrefix("/"))
	assert.Equal(t, "csvs/", normalizePrefix("csvs"))
	assert.Equal(t, "csvs/2024/", normalizePrefix("/csvs/2024/"))
}

func TestIsCSV(t *testing.T) {
	assert.True(t, isCSV("a.csv"))
	assert.True(t, isCSV("a.CSV"))
	assert.False(t, isCSV("a.csv.bak"))
	assert.False(t, isCSV("csv"))
}
