package report

import (
	"path/filepath"

	"github.com/trajectly/trt/internal/schema"
	"github.com/trajectly/trt/internal/store"
)

// WriteReport writes a TRT report's JSON and Markdown twin to
// <reportsDir>/<slug>.json and .md.
func WriteReport(reportsDir, slug string, r *schema.Report) (jsonPath, mdPath string, err error) {
	jsonPath = filepath.Join(reportsDir, slug+".json")
	mdPath = filepath.Join(reportsDir, slug+".md")
	if err = store.WriteJSONAtomic(jsonPath, r); err != nil {
		return "", "", err
	}
	if err = store.WriteFileAtomic(mdPath, []byte(RenderReportMarkdown(r.SpecName, r))); err != nil {
		return "", "", err
	}
	return jsonPath, mdPath, nil
}

// WriteDiffReport writes a standalone DiffReport's JSON and Markdown twin.
func WriteDiffReport(reportsDir, slug, specName string, d *schema.DiffReport) (jsonPath, mdPath string, err error) {
	jsonPath = filepath.Join(reportsDir, slug+".diff.json")
	mdPath = filepath.Join(reportsDir, slug+".diff.md")
	if err = store.WriteJSONAtomic(jsonPath, d); err != nil {
		return "", "", err
	}
	if err = store.WriteFileAtomic(mdPath, []byte(RenderDiffMarkdown(specName, d))); err != nil {
		return "", "", err
	}
	return jsonPath, mdPath, nil
}

// WriteRepro writes a ReproArtifact to <reprosDir>/<slug>.json.
func WriteRepro(reprosDir, slug string, artifact *schema.ReproArtifact) (string, error) {
	path := filepath.Join(reprosDir, slug+".json")
	if err := store.WriteJSONAtomic(path, artifact); err != nil {
		return "", err
	}
	return path, nil
}

// WriteLatest writes the cross-spec latest-run aggregate and its Markdown
// twin to <reportsDir>/latest.{json,md}.
func WriteLatest(reportsDir string, latest *schema.LatestRun, errs []string) (jsonPath, mdPath string, err error) {
	jsonPath = filepath.Join(reportsDir, "latest.json")
	mdPath = filepath.Join(reportsDir, "latest.md")
	if err = store.WriteJSONAtomic(jsonPath, latest); err != nil {
		return "", "", err
	}
	if err = store.WriteFileAtomic(mdPath, []byte(RenderLatestMarkdown(latest, errs))); err != nil {
		return "", "", err
	}
	return jsonPath, mdPath, nil
}
