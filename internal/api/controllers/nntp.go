package controllers

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/gonntp/internal/app"
	"github.com/datallboy/gonntp/internal/provider"
)

// NNTPController answers live queries against the providers.
type NNTPController struct {
	App *app.Context
}

// Capabilities reports what the first available provider advertises.
func (ctrl *NNTPController) Capabilities(c *echo.Context) error {
	var resp CapabilitiesResponse
	err := ctrl.App.NNTP.WithSession(c.Request().Context(), func(s *provider.Session) error {
		caps := s.Capabilities()
		resp = CapabilitiesResponse{
			Provider:       s.Provider(),
			PostingAllowed: s.PostingAllowed(),
			Greeting:       string(s.Greeting().Text()),
			Capabilities:   make(map[string][]string, len(caps)),
		}
		for label, args := range caps {
			if args == nil {
				args = []string{}
			}
			resp.Capabilities[label] = args
		}
		return nil
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Group selects a newsgroup and returns its article range.
func (ctrl *NNTPController) Group(c *echo.Context) error {
	name := c.Param("name")

	var resp GroupResponse
	err := ctrl.App.NNTP.WithSession(c.Request().Context(), func(s *provider.Session) error {
		g, err := s.SelectGroup(name)
		if err != nil {
			return err
		}
		resp = GroupResponse{Name: g.Name, Count: g.Number, Low: g.Low, High: g.High, Provider: s.Provider()}
		return nil
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Article fetches an article by message-id. Body lines are converted to
// UTF-8 lossily; ?head=1 skips the body.
func (ctrl *NNTPController) Article(c *echo.Context) error {
	id := messageIDParam(c)
	if id == "" {
		return c.String(http.StatusBadRequest, "Missing ID")
	}
	ctx := c.Request().Context()

	if c.QueryParam("head") != "" {
		head, err := ctrl.App.NNTP.FetchHead(ctx, id)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, ArticleResponse{
			Number:    head.Number,
			MessageID: head.MessageID,
			Headers:   head.Headers.Map(),
		})
	}

	article, err := ctrl.App.NNTP.FetchArticle(ctx, id)
	if err != nil {
		return httpError(err)
	}
	text := article.ToTextLossy()
	return c.JSON(http.StatusOK, ArticleResponse{
		Number:    text.Number,
		MessageID: text.MessageID,
		Headers:   text.Headers.Map(),
		Body:      text.Body,
	})
}

// Raw serves an article body as the poster wrote it: CRLF lines with the
// terminator line dropped and dot-stuffing removed. No other decoding is
// applied.
func (ctrl *NNTPController) Raw(c *echo.Context) error {
	id := messageIDParam(c)
	if id == "" {
		return c.String(http.StatusBadRequest, "Missing ID")
	}
	body, err := ctrl.App.NNTP.FetchBody(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	var out bytes.Buffer
	out.Grow(len(body.Payload()))
	for line := range body.Unterminated() {
		if bytes.HasPrefix(line, []byte("..")) {
			line = line[1:]
		}
		out.Write(line)
		out.WriteString("\r\n")
	}
	return c.Blob(http.StatusOK, "application/octet-stream", out.Bytes())
}

// messageIDParam returns the :id path parameter unescaped. Angle brackets
// are optional.
func messageIDParam(c *echo.Context) string {
	id := c.Param("id")
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	return id
}
