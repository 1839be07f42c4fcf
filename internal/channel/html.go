package channel

import (
	"bytes"
	"html/template"
	"path/filepath"
	"time"
)

var subdirTemplate = template.Must(template.New("subdir").Parse(`<!DOCTYPE html>
<html>
<head>
<title>{{.Subdir}}</title>
</head>
<body>
<h2>{{.Subdir}}</h2>
<table>
<tr><th>Filename</th><th>Size</th><th>Timestamp</th><th>SHA256</th></tr>
{{- range .Rows}}
<tr><td><a href="{{.Filename}}">{{.Filename}}</a></td><td>{{.Size}}</td><td>{{.Time}}</td><td>{{.SHA256}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

var channelTemplate = template.Must(template.New("channel").Parse(`<!DOCTYPE html>
<html>
<head>
<title>{{.Title}}</title>
</head>
<body>
<h2>{{.Title}}</h2>
<p>Subdirs: {{range $i, $s := .Subdirs}}{{if $i}}, {{end}}<a href="{{$s}}/">{{$s}}</a>{{end}}</p>
<table>
<tr><th>Package</th><th>Latest Version</th><th>Subdirs</th><th>Summary</th></tr>
{{- range .Packages}}
<tr><td>{{if .Home}}<a href="{{.Home}}">{{.Name}}</a>{{else}}{{.Name}}{{end}}</td><td>{{.Version}}</td><td>{{range $i, $s := .Subdirs}}{{if $i}}, {{end}}{{$s}}{{end}}</td><td>{{.Summary}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

type subdirRow struct {
	Filename string
	Size     int64
	Time     string
	SHA256   string
}

// RenderSubdirIndex renders the index.html listing for one architecture.
func RenderSubdirIndex(r *Repodata) ([]byte, error) {
	data := struct {
		Subdir string
		Rows   []subdirRow
	}{Subdir: r.Subdir()}

	for _, f := range r.Filenames() {
		rec, _ := r.Get(f)
		row := subdirRow{Filename: f, Size: rec.Size(), SHA256: rec.SHA256()}
		if ts := rec.Timestamp(); ts > 0 {
			row.Time = time.UnixMilli(normalizeMillis(ts)).UTC().Format("2006-01-02 15:04:05")
		}
		data.Rows = append(data.Rows, row)
	}

	var buf bytes.Buffer
	if err := subdirTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderChannelIndex renders the root index.html for a channel.
func RenderChannelIndex(title string, c *Channeldata) ([]byte, error) {
	data := struct {
		Title    string
		Subdirs  []string
		Packages []*PackageSummary
	}{Title: title, Subdirs: c.Subdirs}

	for _, name := range c.PackageNames() {
		data.Packages = append(data.Packages, c.Packages[name])
	}

	var buf bytes.Buffer
	if err := channelTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSubdirIndex renders and writes {dir}/index.html.
func WriteSubdirIndex(dir string, r *Repodata) error {
	data, err := RenderSubdirIndex(r)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, "index.html"), data)
}

// WriteChannelIndex renders and writes {root}/index.html.
func WriteChannelIndex(root, title string, c *Channeldata) error {
	data, err := RenderChannelIndex(title, c)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(root, "index.html"), data)
}

// Descriptor timestamps are milliseconds; older packages carry seconds.
func normalizeMillis(ts int64) int64 {
	if ts < 1e11 {
		return ts * 1000
	}
	return ts
}
