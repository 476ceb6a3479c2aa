package router

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/report"
	"github.com/ProDevCodePoland/ringrtc/internal/storage"
)

const reportPrefix = "report_"

// Invocation is one test-set run on disk.
type Invocation struct {
	TestSet   string   `json:"test_set"`
	Timestamp string   `json:"timestamp"`
	Groups    []string `json:"groups"`
}

// ReportRouter serves written reports from the output directory and run
// history from the result store.
type ReportRouter struct {
	e         *echo.Echo
	outputDir string
	results   storage.Reader
}

func NewReportRouter(e *echo.Echo, outputDir string, results storage.Reader) *ReportRouter {
	return &ReportRouter{
		e:         e,
		outputDir: outputDir,
		results:   results,
	}
}

func (r *ReportRouter) Bind() {
	r.e.GET("/reports", r.listHandler)
	r.e.GET("/reports/:testset", r.reportHandler)
	r.e.GET("/runs", r.runsHandler)
}

func (r *ReportRouter) listHandler(c echo.Context) error {
	sets, err := subdirs(r.outputDir)
	if err != nil {
		return err
	}

	out := make([]Invocation, 0)
	for _, set := range sets {
		stamps, err := subdirs(filepath.Join(r.outputDir, set))
		if err != nil {
			return err
		}
		for _, stamp := range stamps {
			groups, err := groupsIn(filepath.Join(r.outputDir, set, stamp))
			if err != nil {
				return err
			}
			if len(groups) > 0 {
				out = append(out, Invocation{TestSet: set, Timestamp: stamp, Groups: groups})
			}
		}
	}
	return c.JSON(http.StatusOK, out)
}

// reportHandler returns the group reports of one invocation, the latest unless
// ?timestamp= names another.
func (r *ReportRouter) reportHandler(c echo.Context) error {
	set := c.Param("testset")
	if !safeName(set) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid test set name")
	}

	stamp := c.QueryParam("timestamp")
	if stamp == "" {
		stamps, err := subdirs(filepath.Join(r.outputDir, set))
		if err != nil {
			return err
		}
		for i := len(stamps) - 1; i >= 0 && stamp == ""; i-- {
			if groups, _ := groupsIn(filepath.Join(r.outputDir, set, stamps[i])); len(groups) > 0 {
				stamp = stamps[i]
			}
		}
	}
	if stamp == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no report for test set "+set)
	}
	if !safeName(stamp) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid timestamp")
	}

	dir := filepath.Join(r.outputDir, set, stamp)
	groups, err := groupsIn(dir)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no report for test set "+set+" at "+stamp)
	}

	reports := make([]report.GroupReport, 0, len(groups))
	for _, g := range groups {
		data, err := os.ReadFile(filepath.Join(dir, reportPrefix+g+".json"))
		if err != nil {
			return err
		}
		var rep report.GroupReport
		if err := json.Unmarshal(data, &rep); err != nil {
			return err
		}
		reports = append(reports, rep)
	}
	return c.JSON(http.StatusOK, reports)
}

func (r *ReportRouter) runsHandler(c echo.Context) error {
	if r.results == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "result history is disabled")
	}
	results, err := r.results.List(c.Request().Context(), c.QueryParam("test_set"))
	if err != nil {
		return apperr.NewInfrastructureWrap("list stored results", err)
	}
	return c.JSON(http.StatusOK, results)
}

// subdirs lists directory names in lexical order; a missing dir has none.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func groupsIn(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, reportPrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	groups := make([]string, 0, len(matches))
	for _, m := range matches {
		groups = append(groups, strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), reportPrefix), ".json"))
	}
	sort.Strings(groups)
	return groups, nil
}

func safeName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
