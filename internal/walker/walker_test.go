package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxguardian/pst-extract/internal/config"
	"github.com/mxguardian/pst-extract/internal/domain"
	"github.com/mxguardian/pst-extract/internal/layout"
)

type fakeManifest struct {
	materialized    map[string]bool
	completeFolders map[string]bool
}

func newFakeManifest() *fakeManifest {
	return &fakeManifest{materialized: map[string]bool{}, completeFolders: map[string]bool{}}
}

func (f *fakeManifest) IsMaterialized(blockKey string) bool   { return f.materialized[blockKey] }
func (f *fakeManifest) MarkMaterialized(blockKey string)      { f.materialized[blockKey] = true }
func (f *fakeManifest) IsFolderComplete(folderName string) bool { return f.completeFolders[folderName] }
func (f *fakeManifest) MarkFolderComplete(folderName string)  { f.completeFolders[folderName] = true }

type fakeReporter struct {
	folders []string
	items   int
}

func (r *fakeReporter) FolderDone(name string, itemCount, skipCount int) {
	r.folders = append(r.folders, name)
}
func (r *fakeReporter) ItemProcessed() { r.items++ }

func mailItem(id uint64, subject string) domain.Item {
	return domain.Item{
		Kind:    domain.KindMail,
		BlockID: id,
		Mail: &domain.MailItem{
			SenderEmail: "alice@example.com",
			To:          "bob@example.com",
			Subject:     subject,
			Body:        "hello",
			BodyIsUTF8:  true,
		},
	}
}

func baseConfig(root string) config.Config {
	c := config.New("archive.pst")
	c.Layout = layout.Config{Root: root, Mode: layout.ModeNormal}
	return c
}

func TestOnFolderSkipsDeletedItemsUnlessIncludeDeletedSet(t *testing.T) {
	root := t.TempDir()
	w := New(context.Background(), baseConfig(root), nil, nil)

	skip, err := w.onFolder(domain.FolderItem{Name: "Deleted Items", IsSpecial: true})
	require.NoError(t, err)
	assert.True(t, skip)

	cfg := baseConfig(root)
	cfg.IncludeDeleted = true
	w2 := New(context.Background(), cfg, nil, nil)
	skip2, err := w2.onFolder(domain.FolderItem{Name: "Deleted Items", IsSpecial: true})
	require.NoError(t, err)
	assert.False(t, skip2)
}

func TestOnFolderSkipsAlreadyCompleteFolderFromManifest(t *testing.T) {
	root := t.TempDir()
	m := newFakeManifest()
	m.MarkFolderComplete("Inbox")
	w := New(context.Background(), baseConfig(root), m, nil)

	skip, err := w.onFolder(domain.FolderItem{Name: "Inbox"})
	require.NoError(t, err)
	assert.True(t, skip)
}

func TestRunWritesMailItemsAndReportsFolderSummary(t *testing.T) {
	root := t.TempDir()
	reporter := &fakeReporter{}
	w := New(context.Background(), baseConfig(root), nil, reporter)

	skip, err := w.onFolder(domain.FolderItem{Name: "Inbox"})
	require.NoError(t, err)
	require.False(t, skip)

	require.NoError(t, w.onItem([]string{"Inbox"}, mailItem(1, "first")))
	require.NoError(t, w.onItem([]string{"Inbox"}, mailItem(2, "second")))
	require.NoError(t, w.closeCurrent())

	data, err := os.ReadFile(filepath.Join(root, "Inbox.mbox"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")

	require.Len(t, reporter.folders, 1)
	assert.Equal(t, "Inbox", reporter.folders[0])
	assert.Equal(t, 2, reporter.items)
}

func TestOnItemSkipsAlreadyMaterializedBlockID(t *testing.T) {
	root := t.TempDir()
	m := newFakeManifest()
	m.MarkMaterialized("7")
	w := New(context.Background(), baseConfig(root), m, nil)

	skip, err := w.onFolder(domain.FolderItem{Name: "Inbox"})
	require.NoError(t, err)
	require.False(t, skip)

	require.NoError(t, w.onItem([]string{"Inbox"}, mailItem(7, "already done")))
	require.NoError(t, w.closeCurrent())

	items, skipped := w.Totals()
	assert.Equal(t, 0, items)
	assert.Equal(t, 1, skipped)
}

func TestOnItemHonorsOutputTypeMask(t *testing.T) {
	root := t.TempDir()
	cfg := baseConfig(root)
	cfg.OutputTypes = config.OutputContact // email excluded
	w := New(context.Background(), cfg, nil, nil)

	skip, err := w.onFolder(domain.FolderItem{Name: "Inbox"})
	require.NoError(t, err)
	require.False(t, skip)

	require.NoError(t, w.onItem([]string{"Inbox"}, mailItem(1, "excluded")))
	require.NoError(t, w.closeCurrent())

	assert.NoFileExists(t, filepath.Join(root, "Inbox.mbox"))
	items, skipped := w.Totals()
	assert.Equal(t, 0, items)
	assert.Equal(t, 1, skipped)
}

func TestOnItemRendersContactAsOneLineListWhenConfigured(t *testing.T) {
	root := t.TempDir()
	cfg := baseConfig(root)
	cfg.Contact = config.ContactList
	w := New(context.Background(), cfg, nil, nil)

	skip, err := w.onFolder(domain.FolderItem{Name: "Contacts"})
	require.NoError(t, err)
	require.False(t, skip)

	item := domain.Item{
		Kind:    domain.KindContact,
		BlockID: 3,
		Contact: &domain.ContactItem{
			DisplayName: "Carol",
			Emails:      [3]string{"carol@example.com", "", ""},
		},
	}
	require.NoError(t, w.onItem([]string{"Contacts"}, item))
	require.NoError(t, w.closeCurrent())

	data, err := os.ReadFile(filepath.Join(root, "Contacts.contacts"))
	require.NoError(t, err)
	assert.Equal(t, "Carol <carol@example.com>\n", string(data))
}
