package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"migraine-sense/internal/catalog"
	"migraine-sense/internal/client"
	"migraine-sense/internal/common"
	"migraine-sense/internal/ml"
	"migraine-sense/internal/web"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	profileFlag = &cli.StringFlag{
		Name:  "profile",
		Usage: "Name of a default profile to classify",
	}

	featuresFlag = &cli.StringFlag{
		Name:  "features",
		Usage: "Comma-separated feature values in model order",
	}

	requestIDFlag = &cli.StringFlag{
		Name:  "request-id",
		Usage: "Request ID to attach (optional, generated by the server otherwise)",
	}

	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "Number of records to return",
		Value: common.DefaultHistoryLimit,
	}

	artifactsFlag = &cli.StringFlag{
		Name:    "artifacts",
		Usage:   "Model artifacts directory",
		Value:   common.DefaultArtifactsDir,
		Sources: cli.EnvVars(common.EnvArtifactsDir),
	}

	catalogFlag = &cli.StringFlag{
		Name:    "catalog",
		Usage:   "Catalog YAML file (optional, embedded catalog otherwise)",
		Sources: cli.EnvVars(common.EnvCatalogPath),
	}

	localFlag = &cli.BoolFlag{
		Name:  "local",
		Usage: "Run against local artifacts and catalog instead of a server",
	}

	strictFlag = &cli.BoolFlag{
		Name:  "strict",
		Usage: "Exit with an error when a decoder label has no catalog entry",
	}

	clientFlags = []cli.Flag{serverFlag, timeoutFlag, formatFlag}

	predictCmd = &cli.Command{
		Name:    "predict",
		Aliases: []string{"p"},
		Usage:   "Classify a default profile or a feature vector",
		Flags:   append([]cli.Flag{profileFlag, featuresFlag, requestIDFlag, localFlag, artifactsFlag, catalogFlag}, clientFlags...),
		Action:  cmdPredict,
	}

	profilesCmd = &cli.Command{
		Name:   "profiles",
		Usage:  "List the default symptom profiles",
		Flags:  append([]cli.Flag{localFlag, catalogFlag}, clientFlags...),
		Action: cmdProfiles,
	}

	historyCmd = &cli.Command{
		Name:   "history",
		Usage:  "Show recent predictions",
		Flags:  append([]cli.Flag{limitFlag}, clientFlags...),
		Action: cmdHistory,
	}

	watchCmd = &cli.Command{
		Name:   "watch",
		Usage:  "Stream predictions as they are served",
		Flags:  []cli.Flag{serverFlag, formatFlag},
		Action: cmdWatch,
	}

	labelsCmd = &cli.Command{
		Name:   "labels",
		Usage:  "Check that every decoder label has a catalog entry",
		Flags:  []cli.Flag{artifactsFlag, catalogFlag, strictFlag, formatFlag},
		Action: cmdLabels,
	}
)

func newClient(cmd *cli.Command) *client.Client {
	return client.New(cmd.String(serverFlag.Name), cmd.Duration(timeoutFlag.Name))
}

func cmdPredict(ctx context.Context, cmd *cli.Command) error {
	req := web.PredictionRequest{
		Profile:   cmd.String(profileFlag.Name),
		RequestID: cmd.String(requestIDFlag.Name),
	}
	if raw := cmd.String(featuresFlag.Name); raw != "" {
		features, err := parseFeatures(raw)
		if err != nil {
			return err
		}
		req.Features = features
	}
	if (req.Profile == "") == (req.Features == nil) {
		return errors.New("exactly one of --profile or --features is required")
	}

	var (
		resp *web.PredictionResponse
		err  error
	)
	if cmd.Bool(localFlag.Name) {
		resp, err = predictLocal(req, cmd.String(artifactsFlag.Name), cmd.String(catalogFlag.Name))
	} else {
		resp, err = newClient(cmd).Predict(ctx, req)
	}
	if err != nil {
		return err
	}

	return render(os.Stdout, cmd.String(formatFlag.Name), resp, func(w io.Writer) {
		fmt.Fprintf(w, "Input profile:   %s\n", resp.InputProfile)
		fmt.Fprintf(w, "Predicted type:  %s\n", resp.Label)
		if len(resp.Importances) > 0 {
			fmt.Fprintln(w, "\nTop features:")
			for _, f := range ml.TopFeatures(resp.Importances, 5) {
				fmt.Fprintf(w, "  %-12s %.4f\n", f.Name, f.Score)
			}
		}
		fmt.Fprintf(w, "\nAbout %s:\n", resp.Label)
		for i, line := range resp.Info {
			fmt.Fprintf(w, "  %d. %s\n", i+1, line)
		}
	})
}

func cmdProfiles(ctx context.Context, cmd *cli.Command) error {
	var (
		profiles []catalog.Profile
		err      error
	)
	if cmd.Bool(localFlag.Name) {
		var cat *catalog.Catalog
		if cat, err = catalog.Load(cmd.String(catalogFlag.Name)); err == nil {
			profiles = cat.Profiles()
		}
	} else {
		profiles, err = newClient(cmd).Profiles(ctx)
	}
	if err != nil {
		return err
	}

	return render(os.Stdout, cmd.String(formatFlag.Name), profiles, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROFILE\tVALUES")
		for _, p := range profiles {
			fmt.Fprintf(tw, "%s\t%s\n", p.Name, formatFeatures(p.Values))
		}
		tw.Flush()
	})
}

func cmdHistory(ctx context.Context, cmd *cli.Command) error {
	records, err := newClient(cmd).History(ctx, int(cmd.Int(limitFlag.Name)))
	if err != nil {
		return err
	}

	return render(os.Stdout, cmd.String(formatFlag.Name), records, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tSOURCE\tINPUT\tLABEL")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Timestamp.Local().Format(time.DateTime), r.Source, r.ProfileName, r.Label)
		}
		tw.Flush()
	})
}

func cmdWatch(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String(formatFlag.Name)
	if err := checkFormat(format); err != nil {
		return err
	}
	c := client.New(cmd.String(serverFlag.Name), 0)

	events := make(chan web.PredictionEvent, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- c.Watch(ctx, events) }()

	for {
		select {
		case event := <-events:
			err := render(os.Stdout, format, event, func(w io.Writer) {
				fmt.Fprintf(w, "%s  %-5s  %-30s -> %s\n", event.Timestamp.Local().Format(time.TimeOnly), event.Source, event.InputProfile, event.Label)
			})
			if err != nil {
				return err
			}
		case err := <-errCh:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func cmdLabels(ctx context.Context, cmd *cli.Command) error {
	coverage, missing, err := checkLabels(cmd.String(artifactsFlag.Name), cmd.String(catalogFlag.Name))
	if err != nil {
		return err
	}

	err = render(os.Stdout, cmd.String(formatFlag.Name), coverage, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tCATALOGUED")
		for _, c := range coverage {
			fmt.Fprintf(tw, "%s\t%t\n", c.Label, c.Catalogued)
		}
		tw.Flush()
	})
	if err != nil {
		return err
	}

	if len(missing) > 0 && cmd.Bool(strictFlag.Name) {
		return fmt.Errorf("%d decoder labels have no catalog entry: %s", len(missing), strings.Join(missing, ", "))
	}
	return nil
}

// predictLocal runs one prediction in process, producing the same response
// the server would.
func predictLocal(req web.PredictionRequest, artifactsDir, catalogPath string) (*web.PredictionResponse, error) {
	pipeline, err := ml.LoadPipeline(artifactsDir)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return nil, err
	}

	inputProfile, features := common.ManualEntryProfile, req.Features
	if req.Profile != "" {
		p, err := cat.LookupProfile(req.Profile)
		if err != nil {
			return nil, err
		}
		inputProfile, features = p.Name, p.Values
	}

	start := time.Now()
	result, err := pipeline.Predict(features)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	info, found := cat.Info(result.Label)
	return &web.PredictionResponse{
		RequestID:    id,
		Label:        result.Label,
		Encoded:      result.Encoded,
		Importances:  result.Importances,
		Info:         info,
		InfoFound:    found,
		InputProfile: inputProfile,
		Latency:      float64(latency.Microseconds()) / 1000,
		Timestamp:    time.Now().UTC(),
	}, nil
}

// checkLabels compares the decoder labels of local artifacts against the
// catalog without a running server.
func checkLabels(artifactsDir, catalogPath string) ([]web.LabelCoverage, []string, error) {
	pipeline, err := ml.LoadPipeline(artifactsDir)
	if err != nil {
		return nil, nil, err
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return nil, nil, err
	}

	labels := pipeline.Labels()
	coverage := make([]web.LabelCoverage, len(labels))
	for i, l := range labels {
		coverage[i] = web.LabelCoverage{Label: l, Catalogued: cat.Has(l)}
	}
	return coverage, cat.Missing(labels), nil
}

// parseFeatures reads a comma-separated list of finite numbers.
func parseFeatures(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	features := make([]float64, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("feature %d: %q is not a finite number", i, p)
		}
		features = append(features, v)
	}
	return features, nil
}

func formatFeatures(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML, "":
		return nil
	default:
		return fmt.Errorf("unknown format %q, want text, json or yaml", format)
	}
}

// render writes v as JSON or YAML, or calls text for the default format.
func render(w io.Writer, format string, v interface{}, text func(io.Writer)) error {
	if err := checkFormat(format); err != nil {
		return err
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(w)
		return nil
	}
}
