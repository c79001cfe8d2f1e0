package vis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	MapChartID = "intertopic_map"
	PageTitle  = "LDA topic visualization"

	mapWidth   = "900px"
	mapHeight  = "600px"
	barWidth   = "900px"
	barHeight  = "640px"
	minBubble  = 12
	bubbleSpan = 80
)

// TopicChartID names the term chart of a topic.
func TopicChartID(topic int) string {
	return fmt.Sprintf("topic_%d", topic)
}

// Render writes a standalone HTML page: the intertopic map followed by one
// term chart per topic.
func Render(w io.Writer, data *Data) error {
	if data == nil {
		return errors.New("vis: nil data")
	}

	page := components.NewPage()
	page.PageTitle = PageTitle

	all := []components.Charter{intertopicMap(data)}
	for t := range data.Topics {
		all = append(all, termChart(data, t))
	}
	page.AddCharts(all...)
	return page.Render(w)
}

func intertopicMap(data *Data) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{ChartID: MapChartID, Width: mapWidth, Height: mapHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Intertopic distance map",
			Subtitle: "bubble area follows topic prevalence",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Formatter: "{b}"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "PC1"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "PC2"}),
	)

	points := make([]opts.ScatterData, 0, len(data.Topics))
	for _, tp := range data.Topics {
		points = append(points, opts.ScatterData{
			Name:       fmt.Sprintf("%d: %s (%.1f%%)", tp.Index, tp.Label, tp.Prevalence*100),
			Value:      []float64{round(tp.X), round(tp.Y)},
			SymbolSize: minBubble + int(math.Sqrt(tp.Prevalence)*bubbleSpan),
		})
	}
	scatter.AddSeries("topics", points,
		charts.WithLabelOpts(opts.Label{Show: true, Position: "inside", Formatter: "{b}"}),
	)
	return scatter
}

func termChart(data *Data, topic int) *charts.Bar {
	tp := data.Topics[topic]
	terms := data.Terms[topic]

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{ChartID: TopicChartID(topic), Width: barWidth, Height: barHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Topic %d: %s", tp.Index, tp.Label),
			Subtitle: fmt.Sprintf("top %d terms, relevance lambda = %.2f", len(terms), data.Lambda),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true}),
	)

	// reversed so the most relevant term ends up on top once the axes flip
	tokens := make([]string, len(terms))
	weights := make([]opts.BarData, len(terms))
	overall := make([]opts.BarData, len(terms))
	for i, term := range terms {
		j := len(terms) - 1 - i
		tokens[j] = term.Token
		weights[j] = opts.BarData{Name: term.Token, Value: round(term.Weight)}
		overall[j] = opts.BarData{Name: term.Token, Value: round(term.Overall)}
	}

	bar.SetXAxis(tokens).
		AddSeries("p(term | topic)", weights).
		AddSeries("p(term)", overall)
	bar.XYReversal()
	return bar
}

func round(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}

// EnsureHTML returns the page cached at path, rendering it with build and
// saving it first when the file does not exist yet.
func EnsureHTML(path string, build func(io.Writer) error) ([]byte, error) {
	cached, err := os.ReadFile(path)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var buf bytes.Buffer
	if err := build(&buf); err != nil {
		return nil, fmt.Errorf("render visualization: %w", err)
	}

	// written aside, then renamed into place
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vis-*.html")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
