package storage_test

import (
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/nikbrunner/bmclean/internal/health"
	"github.com/nikbrunner/bmclean/internal/model"
	"github.com/nikbrunner/bmclean/internal/oracle"
	"github.com/nikbrunner/bmclean/internal/storage"
)

func TestLoadConfig_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	config, err := storage.LoadConfig(path)
	assert.NilError(t, err)
	assert.Equal(t, config.ProbeTimeoutSeconds, 10)

	// Second load reads the file written on first load.
	again, err := storage.LoadConfig(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, config, again)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	assert.NilError(t, storage.SaveConfig(path, &storage.Config{ProbeTimeoutSeconds: 9999}))

	_, err := storage.LoadConfig(path)
	assert.Assert(t, err != nil, "expected validation failure for out-of-range timeout")
}

func sampleReport() *health.Report {
	return &health.Report{
		Issues: []health.Issue{
			{
				Bookmark: &model.Bookmark{ID: "b1", Title: "Dead Site", URL: "https://dead.example.com"},
				Path:     "Dev",
				Status:   health.StatusNetworkError,
				Detail:   "DNS failure",
			},
			{
				Bookmark: &model.Bookmark{ID: "b2", Title: "Moved Site", URL: "https://old.example.com"},
				Path:     "News",
				Status:   oracle.StatusPermanentRedirect,
				NewURL:   "https://new.example.com",
			},
		},
		TotalChecked: 40,
		TotalIssues:  2,
		HealthScore:  95,
	}
}

func TestReportStore_SaveAndList(t *testing.T) {
	store, err := storage.NewReportStore(filepath.Join(t.TempDir(), "audits.db"))
	assert.NilError(t, err)
	defer store.Close()

	runID, err := store.SaveReport(sampleReport())
	assert.NilError(t, err)
	assert.Assert(t, runID > 0)

	runs, err := store.ListRuns()
	assert.NilError(t, err)
	assert.Equal(t, len(runs), 1)
	assert.Equal(t, runs[0].ID, runID)
	assert.Equal(t, runs[0].TotalChecked, 40)
	assert.Equal(t, runs[0].TotalIssues, 2)
	assert.Equal(t, runs[0].HealthScore, 95)
	assert.Assert(t, !runs[0].CreatedAt.IsZero())
}

func TestReportStore_Issues(t *testing.T) {
	store, err := storage.NewReportStore(filepath.Join(t.TempDir(), "audits.db"))
	assert.NilError(t, err)
	defer store.Close()

	runID, err := store.SaveReport(sampleReport())
	assert.NilError(t, err)

	issues, err := store.Issues(runID)
	assert.NilError(t, err)
	assert.Equal(t, len(issues), 2)

	assert.Equal(t, issues[0].Title, "Dead Site")
	assert.Equal(t, issues[0].Status, "NetworkError")
	assert.Equal(t, issues[0].Detail, "DNS failure")
	assert.Equal(t, issues[1].Status, "PermanentRedirect")
	assert.Equal(t, issues[1].NewURL, "https://new.example.com")
	assert.Equal(t, issues[1].Path, "News")
}

func TestReportStore_MultipleRunsNewestFirst(t *testing.T) {
	store, err := storage.NewReportStore(filepath.Join(t.TempDir(), "audits.db"))
	assert.NilError(t, err)
	defer store.Close()

	first, err := store.SaveReport(sampleReport())
	assert.NilError(t, err)
	second, err := store.SaveReport(&health.Report{TotalChecked: 5, HealthScore: 100})
	assert.NilError(t, err)

	runs, err := store.ListRuns()
	assert.NilError(t, err)
	assert.Equal(t, len(runs), 2)
	assert.Equal(t, runs[0].ID, second)
	assert.Equal(t, runs[1].ID, first)
}

func TestReportStore_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audits.db")

	store, err := storage.NewReportStore(path)
	assert.NilError(t, err)
	runID, err := store.SaveReport(sampleReport())
	assert.NilError(t, err)
	assert.NilError(t, store.Close())

	reopened, err := storage.NewReportStore(path)
	assert.NilError(t, err)
	defer reopened.Close()

	issues, err := reopened.Issues(runID)
	assert.NilError(t, err)
	assert.Equal(t, len(issues), 2)
}
