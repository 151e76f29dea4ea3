package schema

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedTrain = `<schema>
  <protocol>
    <protocolVersion>
      <table name="Seed Train">
        <field key="1" name="Vessel"/>
        <field key="2" name="Volume (mL)"/>
        <field key="3"/>
      </table>
      <table>
        <field key="9" name="Ignored"/>
      </table>
    </protocolVersion>
  </protocol>
</schema>`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestMerge(t *testing.T) {
	tables := map[string]Mapping{}
	require.NoError(t, Merge(tables, []byte(seedTrain)))

	require.Contains(t, tables, "Seed Train")
	assert.Equal(t, Mapping{"F_1": "Vessel", "F_2": "Volume (mL)"}, tables["Seed Train"])
	assert.Len(t, tables, 1)
}

func TestMergeOverwritesAndExtends(t *testing.T) {
	tables := builtinTables()
	doc := `<s><protocolVersion><table name="Media Equilibration and Readiness for Vial Thaw">
		<field key="95" name="Reagent"/><field key="200" name="Operator"/>
	</table></protocolVersion></s>`
	require.NoError(t, Merge(tables, []byte(doc)))

	m := tables["Media Equilibration and Readiness for Vial Thaw"]
	assert.Equal(t, "Reagent", m["F_95"])
	assert.Equal(t, "Operator", m["F_200"])
	assert.Equal(t, "Incubation Duration", m["F_108"])
}

func TestMergeRootProtocolVersionIgnored(t *testing.T) {
	tables := map[string]Mapping{}
	require.NoError(t, Merge(tables, []byte(`<protocolVersion><table name="X"><field key="1" name="A"/></table></protocolVersion>`)))
	assert.Empty(t, tables)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.xml", seedTrain)
	bad := writeFile(t, dir, "bad.xml", "<schema><protocolVersion>")

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	snap := Load([]File{
		{Name: "good", Path: good},
		{Name: "bad", Path: bad},
		{Name: "missing", Path: filepath.Join(dir, "missing.xml")},
	}, logger)

	assert.Equal(t, "Vessel", snap.Table("Seed Train")["F_1"])
	assert.Equal(t, "MFSR Name", snap.Table("Media Equilibration and Readiness for Vial Thaw")["F_95"])
	assert.Equal(t, 2, snap.Tables())
	assert.Contains(t, buf.String(), "schema file not found")
	assert.Contains(t, buf.String(), "could not be parsed")
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.xml")

	reg := NewRegistry([]File{{Name: "seed", Path: path}}, zerolog.Nop())
	assert.Nil(t, reg.Snapshot().Table("Seed Train"))
	assert.Equal(t, []string{path}, reg.Missing())
	assert.Error(t, reg.CheckDir(dir))

	writeFile(t, dir, "seed.xml", seedTrain)
	reg.Reload()

	assert.Equal(t, "Vessel", reg.Snapshot().Table("Seed Train")["F_1"])
	assert.Empty(t, reg.Missing())
	assert.NoError(t, reg.CheckDir(dir))
	assert.Error(t, reg.CheckDir(filepath.Join(dir, "nope")))
}

func TestRegistryConcurrentReads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "seed.xml", seedTrain)
	reg := NewRegistry([]File{{Name: "seed", Path: path}}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Equal(t, "Vessel", reg.Snapshot().Table("Seed Train")["F_1"])
			}
		}()
	}
	reg.Reload()
	wg.Wait()
}

func TestDefaultFiles(t *testing.T) {
	files := DefaultFiles("schemas")
	require.Len(t, files, 5)
	assert.Equal(t, "media_feed_schema", files[0].Name)
	assert.Equal(t, filepath.Join("schemas", "Seed Train-CBD-UBD.xml"), files[4].Path)
}

func TestNilSnapshot(t *testing.T) {
	var s *Snapshot
	assert.Nil(t, s.Table("x"))
	assert.Equal(t, 0, s.Tables())
}
