package web

import (
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"

	"migraine-sense/internal/catalog"
	"migraine-sense/internal/chart"
	"migraine-sense/internal/common"
	"migraine-sense/internal/ml"
	"migraine-sense/internal/storage"

	"github.com/rs/zerolog/log"
)

const (
	modeDefault = "default"
	modeManual  = "manual"
)

// errFormValue marks manual form values that are missing or out of range.
var errFormValue = fmt.Errorf("form value: %w", ml.ErrInvalidFeature)

type formField struct {
	Name  string
	Value string
}

type pageResult struct {
	InputProfile string
	Label        string
	ChartHTML    string
	Info         []string
	InfoFound    bool
}

type pageData struct {
	Mode         string
	Profiles     []catalog.Profile
	Selected     catalog.Profile
	Features     []string
	Fields       []formField
	Result       *pageResult
	Error        string
	Recent       []storage.PredictionRecord
	ModelVersion string
	Min          int
	Max          int
}

var pageTemplate = template.Must(template.New("index").Parse(indexHTML))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := s.newPageData(q.Get("mode"), q.Get("profile"))
	s.renderPage(w, http.StatusOK, data)
}

func (s *Server) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		data := s.newPageData(modeDefault, "")
		data.Error = fmt.Sprintf("invalid form: %v", err)
		s.renderPage(w, http.StatusBadRequest, data)
		return
	}

	data := s.newPageData(r.PostFormValue("mode"), r.PostFormValue("profile"))

	var (
		inputProfile string
		features     []float64
		err          error
	)
	if data.Mode == modeManual {
		features, data.Fields, err = s.parseManualFields(r)
		inputProfile = common.ManualEntryProfile
	} else {
		inputProfile, features = data.Selected.Name, data.Selected.Values
		if requested := r.PostFormValue("profile"); requested != "" {
			_, err = s.catalog.LookupProfile(requested)
		} else if inputProfile == "" {
			err = fmt.Errorf("%w: no default profiles are configured", catalog.ErrUnknownProfile)
		}
	}
	if err != nil {
		data.Error = err.Error()
		s.renderPage(w, statusFor(err), data)
		return
	}

	out, err := s.predict("", "form", inputProfile, features)
	if err != nil {
		data.Error = fmt.Sprintf("prediction failed: %v", err)
		s.renderPage(w, statusFor(err), data)
		return
	}

	result := &pageResult{
		InputProfile: out.inputProfile,
		Label:        out.result.Label,
		Info:         out.info,
		InfoFound:    out.infoFound,
	}
	if len(out.result.Importances) > 0 {
		title := fmt.Sprintf("Feature Importance (%s)", modelDisplayName(s.predictor.Metadata().ModelType))
		html, err := chart.RenderImportance(title, out.result.Importances)
		if err != nil {
			log.Warn().Err(err).Msg("skipping importance chart")
		} else {
			result.ChartHTML = string(html)
		}
	}
	data.Result = result
	data.Recent = s.recent()

	s.renderPage(w, http.StatusOK, data)
}

// newPageData resolves the mode and selected profile, falling back to
// default mode and the first profile.
func (s *Server) newPageData(mode, profile string) pageData {
	if mode != modeManual {
		mode = modeDefault
	}

	data := pageData{
		Mode:         mode,
		Profiles:     s.catalog.Profiles(),
		Features:     s.predictor.FeatureNames(),
		ModelVersion: s.predictor.Metadata().Version,
		Min:          common.MinFormValue,
		Max:          common.MaxFormValue,
		Recent:       s.recent(),
	}

	if p, ok := s.catalog.Profile(profile); ok {
		data.Selected = p
	} else if len(data.Profiles) > 0 {
		data.Selected = data.Profiles[0]
	}

	data.Fields = make([]formField, len(data.Features))
	for i, name := range data.Features {
		data.Fields[i] = formField{Name: name, Value: strconv.Itoa(common.DefaultFormValue)}
	}
	return data
}

// parseManualFields reads one value per feature. Values must be numbers in
// [MinFormValue, MaxFormValue]. The submitted values are echoed back so the
// form keeps them on error.
func (s *Server) parseManualFields(r *http.Request) ([]float64, []formField, error) {
	names := s.predictor.FeatureNames()
	features := make([]float64, len(names))
	fields := make([]formField, len(names))

	var problems []string
	for i, name := range names {
		raw := strings.TrimSpace(r.PostFormValue(name))
		fields[i] = formField{Name: name, Value: raw}

		if raw == "" {
			problems = append(problems, fmt.Sprintf("%s is required", name))
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			problems = append(problems, fmt.Sprintf("%s must be a number", name))
			continue
		}
		if v < common.MinFormValue || v > common.MaxFormValue {
			problems = append(problems, fmt.Sprintf("%s must be between %d and %d", name, common.MinFormValue, common.MaxFormValue))
			continue
		}
		features[i] = v
	}

	if len(problems) > 0 {
		return nil, fields, fmt.Errorf("%w: %s", errFormValue, strings.Join(problems, "; "))
	}
	return features, fields, nil
}

func (s *Server) recent() []storage.PredictionRecord {
	if s.history == nil {
		return nil
	}
	records, err := s.history.Recent(s.config.HistoryLimit)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read prediction history")
		return nil
	}
	return records
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	var buf strings.Builder
	if err := pageTemplate.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("failed to render page")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(buf.String()))
}

// modelDisplayName turns random_forest into "Random Forest".
func modelDisplayName(kind string) string {
	if kind == "" {
		return "Model"
	}
	words := strings.Split(kind, "_")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Migraine Sense</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #0b0c10; color: #c5c6c7; }
        .container { max-width: 1100px; margin: 0 auto; }
        .navbar { background: linear-gradient(90deg, #0b0c10, #1f2833); padding: 1rem 2rem; border-radius: 12px; display: flex; justify-content: space-between; align-items: center; }
        .nav-title { font-size: 1.6rem; font-weight: bold; color: #66fcf1; }
        .section { background: rgba(102, 252, 241, 0.07); border: 1px solid rgba(102, 252, 241, 0.25); box-shadow: 0 0 25px rgba(102, 252, 241, 0.3); padding: 20px; border-radius: 16px; margin-top: 20px; }
        .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 12px 24px; }
        .field label { display: block; font-weight: 500; margin-bottom: 4px; }
        .field input { width: 100%; padding: 6px; border-radius: 6px; border: 1px solid #45a29e; background: #1f2833; color: #fff; }
        .success { color: #66fcf1; }
        .error { color: #ff6b6b; font-weight: bold; }
        .warning { color: #ffc107; }
        button { background: linear-gradient(90deg, #45a29e, #66fcf1); color: black; font-weight: 600; border: none; border-radius: 10px; padding: 0.6rem 2rem; cursor: pointer; }
        iframe { width: 100%; height: 440px; border: none; border-radius: 10px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 6px; border-bottom: 1px solid #1f2833; }
    </style>
</head>
<body>
<div class="container">
    <div class="navbar">
        <div class="nav-title">Migraine Sense</div>
        <form method="get" action="/">
            <label>Default type
                <select name="profile">
                    {{range .Profiles}}<option value="{{.Name}}"{{if eq .Name $.Selected.Name}} selected{{end}}>{{.Name}}</option>{{end}}
                </select>
            </label>
            <label><input type="radio" name="mode" value="default"{{if eq .Mode "default"}} checked{{end}}> Use default profile</label>
            <label><input type="radio" name="mode" value="manual"{{if eq .Mode "manual"}} checked{{end}}> Manual entry</label>
            <button type="submit">Apply</button>
        </form>
    </div>

    <div class="section">
        <h2>Enter Symptom Values</h2>
        {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
        <form method="post" action="/predict">
            <input type="hidden" name="mode" value="{{.Mode}}">
            <input type="hidden" name="profile" value="{{.Selected.Name}}">
            {{if eq .Mode "manual"}}
            <div class="grid">
                {{range .Fields}}
                <div class="field">
                    <label for="f-{{.Name}}">{{.Name}}</label>
                    <input id="f-{{.Name}}" type="number" name="{{.Name}}" min="{{$.Min}}" max="{{$.Max}}" step="1" value="{{.Value}}">
                </div>
                {{end}}
            </div>
            {{else}}
            <p class="success">Using default values for <strong>{{.Selected.Name}}</strong>.</p>
            <table>
                <tr>{{range .Features}}<th>{{.}}</th>{{end}}</tr>
                <tr>{{range .Selected.Values}}<td>{{.}}</td>{{end}}</tr>
            </table>
            {{end}}
            <p><button type="submit">Predict Migraine Type</button></p>
        </form>
    </div>

    {{with .Result}}
    <div class="section" id="result">
        <h2>Prediction Results</h2>
        <p><strong>Input Profile Type:</strong> <span id="input-profile">{{.InputProfile}}</span></p>
        <p><strong>Predicted Migraine Type:</strong> <span id="label">{{.Label}}</span></p>
    </div>

    {{if .ChartHTML}}
    <div class="section">
        <h2>Feature Importance Chart</h2>
        <iframe title="Feature importance" srcdoc="{{.ChartHTML}}"></iframe>
    </div>
    {{end}}

    <div class="section" id="info">
        <h2>Information About {{.Label}}</h2>
        {{if not .InfoFound}}<p class="warning">This subtype has no catalog entry.</p>{{end}}
        <ol>
            {{range .Info}}<li>{{.}}</li>{{end}}
        </ol>
    </div>
    {{end}}

    {{if .Recent}}
    <div class="section">
        <h2>Recent Predictions</h2>
        <table>
            <tr><th>Time</th><th>Source</th><th>Input Profile</th><th>Label</th></tr>
            {{range .Recent}}
            <tr><td>{{.Timestamp.Format "2006-01-02 15:04:05"}}</td><td>{{.Source}}</td><td>{{.ProfileName}}</td><td>{{.Label}}</td></tr>
            {{end}}
        </table>
    </div>
    {{end}}

    <p>Model version {{.ModelVersion}}</p>
</div>
<script>
    // Live feed of predictions from other clients.
    (function() {
        var proto = location.protocol === "https:" ? "wss://" : "ws://";
        var ws = new WebSocket(proto + location.host + "/ws");
        ws.onmessage = function(e) {
            try { console.log("prediction", JSON.parse(e.data)); } catch (err) {}
        };
    })();
</script>
</body>
</html>
`
