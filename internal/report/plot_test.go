package report

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRenderPlot(t *testing.T) {
	points, err := Series(seededStore(t), 100, 103)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "cat_txs.png")
	if err = RenderPlot(points, path); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("plot file is empty")
	}
}

func TestRenderPlotRejectsEmptySeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat_txs.png")
	if err := RenderPlot(nil, path); err == nil {
		t.Error("empty series rendered")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("empty series produced a file")
	}
}
