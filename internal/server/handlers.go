package server

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/inference"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/internalerr"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store"
)

// MsgEnterText is returned when the classify form is submitted blank.
const MsgEnterText = "please enter a text to analyse"

type classifyRequest struct {
	Text string `json:"text" form:"text"`
}

type classifyResponse struct {
	Topic      int     `json:"topic"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	RequestID  string  `json:"request_id,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

type topicResponse struct {
	reviewtopics.Topic
	Reviews int `json:"reviews"`
}

type topicsResponse struct {
	Ready  bool            `json:"ready"`
	Topics []topicResponse `json:"topics"`
}

type reviewsResponse struct {
	N       int            `json:"n"`
	Reviews []store.Review `json:"reviews"`
}

type healthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
	Model  string `json:"model"`
	Error  string `json:"error,omitempty"`
}

// classifyText runs one classification and records it.
func (s *Server) classifyText(c echo.Context, text string) inference.Result {
	start := time.Now()
	res := s.backend.Classify(text)

	outcome, topic := "ok", 0
	if res.OK() {
		topic = *res.Topic
	} else {
		outcome = internalerr.Kind(res.Err)
	}
	s.metrics.ObserveClassification(outcome, topic, time.Since(start))

	s.log.Debug("Classified",
		zap.String("request_id", requestID(c)),
		zap.String("outcome", outcome),
		zap.Int("topic", topic),
		zap.Float64("confidence", res.Confidence),
	)
	return res
}

func (s *Server) classify(c echo.Context) error {
	var req classifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:     "malformed request body",
			Kind:      "invalid_input",
			RequestID: requestID(c),
		})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:     MsgEnterText,
			Kind:      "empty_input",
			RequestID: requestID(c),
		})
	}

	res := s.classifyText(c, req.Text)
	if !res.OK() {
		return c.JSON(statusFor(res.Err), errorResponse{
			Error:     internalerr.Message(res.Err),
			Kind:      internalerr.Kind(res.Err),
			RequestID: requestID(c),
		})
	}
	return c.JSON(http.StatusOK, classifyResponse{
		Topic:      *res.Topic,
		Label:      res.Label,
		Confidence: res.Confidence,
		RequestID:  requestID(c),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, internalerr.ErrMissingArtifact):
		return http.StatusServiceUnavailable
	case errors.Is(err, internalerr.ErrEmptyInput), errors.Is(err, internalerr.ErrNoTopicPredicted):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) topics(c echo.Context) error {
	counts, err := s.backend.TopicCounts(c.Request().Context())
	if err != nil {
		return err
	}
	resp := topicsResponse{Ready: s.backend.Ready(), Topics: []topicResponse{}}
	for _, t := range s.backend.Topics() {
		resp.Topics = append(resp.Topics, topicResponse{Topic: t, Reviews: counts[t.Index]})
	}
	return c.JSON(http.StatusOK, resp)
}

func parseCount(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return reviewtopics.ClampExamples(0)
	}
	return reviewtopics.ClampExamples(n)
}

func (s *Server) reviews(c echo.Context) error {
	n := parseCount(c.QueryParam("n"))
	reviews, err := s.backend.Examples(c.Request().Context(), n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reviewsResponse{N: n, Reviews: reviews})
}

func (s *Server) visualization(c echo.Context) error {
	page, err := s.backend.VisualizationHTML()
	if err != nil {
		if errors.Is(err, internalerr.ErrMissingArtifact) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, internalerr.Message(err))
		}
		return err
	}
	return c.HTMLBlob(http.StatusOK, page)
}

func (s *Server) health(c echo.Context) error {
	resp := healthResponse{Status: "ok", Ready: s.backend.Ready(), Model: s.backend.ModelPath()}
	if err := s.backend.LoadErr(); err != nil {
		resp.Error = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

// pageData feeds templates/index.html.
type pageData struct {
	Ready      bool
	LoadError  string
	ModelPath  string
	Topics     []topicResponse
	TotalLabel string

	N        int
	Examples []store.Review

	Text       string
	Submitted  bool
	Warning    string
	Result     *classifyResponse
	ResultErr  string
	RequestID  string
	MaxSamples int
}

var pageFuncs = template.FuncMap{
	"percent": func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"fixed3":  func(f float64) string { return fmt.Sprintf("%.3f", f) },
}

func (s *Server) index(c echo.Context) error {
	ctx := c.Request().Context()
	data := pageData{
		Ready:      s.backend.Ready(),
		ModelPath:  s.backend.ModelPath(),
		N:          parseCount(c.FormValue("n")),
		RequestID:  requestID(c),
		MaxSamples: reviewtopics.MaxExamples,
	}
	if err := s.backend.LoadErr(); err != nil {
		data.LoadError = internalerr.Message(err)
	}

	counts, err := s.backend.TopicCounts(ctx)
	if err != nil {
		return err
	}
	total := 0
	for _, t := range s.backend.Topics() {
		data.Topics = append(data.Topics, topicResponse{Topic: t, Reviews: counts[t.Index]})
	}
	for _, n := range counts {
		total += n
	}
	data.TotalLabel = s.printer.Sprintf("%d reviews across %d topics", total, len(counts))

	if data.Examples, err = s.backend.Examples(ctx, data.N); err != nil {
		return err
	}

	if c.Request().Method == http.MethodPost {
		data.Submitted = true
		data.Text = c.FormValue("text")
		if strings.TrimSpace(data.Text) == "" {
			data.Warning = MsgEnterText
		} else if res := s.classifyText(c, data.Text); res.OK() {
			data.Result = &classifyResponse{Topic: *res.Topic, Label: res.Label, Confidence: res.Confidence}
		} else {
			data.ResultErr = internalerr.Message(res.Err)
		}
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
