package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/gonntp/internal/app"
)

// OverviewController serves the overview archive.
type OverviewController struct {
	App *app.Context
}

func limitParam(c *echo.Context, def int) int {
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		return min(n, 1000)
	}
	return def
}

// List returns the newest stored overviews for a group.
func (ctrl *OverviewController) List(c *echo.Context) error {
	if ctrl.App.Store == nil {
		return c.String(http.StatusNotImplemented, "no overview store configured")
	}
	overviews, err := ctrl.App.Store.ListOverviews(c.Request().Context(), c.Param("name"), limitParam(c, 100))
	if err != nil {
		return httpError(err)
	}
	out := make([]OverviewResponse, 0, len(overviews))
	for _, ov := range overviews {
		out = append(out, newOverviewResponse(ov))
	}
	return c.JSON(http.StatusOK, out)
}

// Runs lists the recent fetch runs for a group.
func (ctrl *OverviewController) Runs(c *echo.Context) error {
	if ctrl.App.Store == nil {
		return c.String(http.StatusNotImplemented, "no overview store configured")
	}
	runs, err := ctrl.App.Store.Runs(c.Request().Context(), c.Param("name"), limitParam(c, 20))
	if err != nil {
		return httpError(err)
	}
	out := make([]RunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, newRunResponse(r))
	}
	return c.JSON(http.StatusOK, out)
}

// Feed renders the stored overviews as RSS so feed readers can follow a
// group. Enclosures point at the raw article endpoint.
func (ctrl *OverviewController) Feed(c *echo.Context) error {
	if ctrl.App.Store == nil {
		return c.String(http.StatusNotImplemented, "no overview store configured")
	}
	group := c.Param("name")
	overviews, err := ctrl.App.Store.ListOverviews(c.Request().Context(), group, limitParam(c, 50))
	if err != nil {
		return httpError(err)
	}

	baseURL := fmt.Sprintf("%s://%s", c.Scheme(), c.Request().Host)
	rss := RSS{
		Version: "2.0",
		Channel: Channel{
			Title:       group,
			Description: "Overview archive for " + group,
			Link:        fmt.Sprintf("%s/groups/%s/overviews", baseURL, url.PathEscape(group)),
			Items:       make([]RSSItem, 0, len(overviews)),
		},
	}
	for _, ov := range overviews {
		link := fmt.Sprintf("%s/articles/%s", baseURL, url.PathEscape(ov.MessageID))
		rss.Channel.Items = append(rss.Channel.Items, RSSItem{
			Title:   ov.Subject,
			GUID:    RSSGUID{Value: ov.MessageID},
			Link:    link,
			Author:  ov.From,
			PubDate: ov.Date,
			Enclosure: Enclosure{
				URL:    link + "/raw",
				Type:   "application/octet-stream",
				Length: ov.Bytes,
			},
		})
	}
	return c.XML(http.StatusOK, rss)
}
