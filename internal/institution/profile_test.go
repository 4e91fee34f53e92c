package institution

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	p := Default()

	assert.Equal(t, "RUMAH SAKIT PARU SUMATERA BARAT", p.Hospital)
	assert.Equal(t, "Lubuk Alung", p.City)
	assert.Equal(t, "dr. Lusi Agustini Arda, Sp.P", p.FirstSignatory.Name)
	assert.Equal(t, "19840812 201101 2 008", p.FirstSignatory.NIP)
	assert.Equal(t, "Etri Putri, S.K.M", p.SecondSignatory.Name)
	assert.Equal(t, "Email.RSK.paru@gmail.com Website: rsparu.sumbarprov.go.id", p.Contact)
	assert.Equal(t, "Jln. Dr. M. Jamil No.110 Lubuk Alung Telp ( 0751) 96013 96688 fax.96013", p.Address)
	assert.Len(t, p.MastheadLines(), 5)
	for _, line := range p.MastheadLines() {
		assert.NotEmpty(t, line)
	}
}

func TestDefault_EmbeddedYAMLParses(t *testing.T) {
	var p Profile
	require.NoError(t, yaml.Unmarshal(defaultYAML, &p))
	assert.NotPanics(t, func() { Default() })
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("city: Padang\nsecond_signatory:\n  name: Budi\n"), 0o600))

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Padang", p.City)
	assert.Equal(t, "Budi", p.SecondSignatory.Name)
	assert.Equal(t, "20020424202504 2 008", p.SecondSignatory.NIP)
	assert.Equal(t, Default().Hospital, p.Hospital)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("city: [unterminated"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)

	blank := filepath.Join(t.TempDir(), "blank.yaml")
	require.NoError(t, os.WriteFile(blank, []byte("first_signatory:\n  name: \"\"\n"), 0o600))
	_, err = Load(blank)
	assert.Error(t, err)
}
