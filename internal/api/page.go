package api

import (
	"html/template"
	"time"

	"github.com/JakeFAU/testimony-tracker/internal/testimony"
)

type pageData struct {
	Bill           string
	ListingURL     string
	Results        testimony.Results
	MissingEnabled bool
	MissingCount   int
	CompareBill    string
	CompareSession string
	UpdatedAt      time.Time
}

var indexTemplate = template.Must(template.New("index").Parse(`<html>
<head>
  <title>{{.Bill}} testimony numbers</title>
  <link href="https://fonts.googleapis.com/css?family=Press+Start+2P" rel="stylesheet">
  <link href="https://unpkg.com/nes.css/css/nes.css" rel="stylesheet" />
  <style>
    h1, h2, h3, h4, h5 {
      text-align: center;
    }

    footer p {
      text-align: center;
    }
  </style>
</head>
<body>
  <h2 class="nes-text is-primary">How many people testified for {{.Bill}}?</h2>
  <h3>(Taken fresh from <a href="{{.ListingURL}}">OLIS</a>!)</h3>

  <div class="nes-table-responsive"><table class="nes-table is-bordered is-centered" style="margin-left: auto; margin-right: auto">
    <thead>
      <th></th>
      <th></th>
    </thead>
    <tbody>
      <tr><td class="nes-text is-primary">Total</td><td><b>{{.Results.Total}}</b></td></tr>
      <tr><td class="nes-text is-success">Support</td><td><b>{{.Results.Support}}</b></td></tr>
      <tr><td class="nes-text is-error">Oppose</td><td><b>{{.Results.Oppose}}</b></td></tr>
      <tr><td class="nes-text is-warning">Unknown</td><td><b>{{.Results.Unknown}}</b></td></tr>
    </tbody>
  </table></div>

  <footer>
    <div class="lists"><ul class="nes-list is-disc">
      <li>Here's <a href="/source">source code</a>, if you want to reuse this site for another bill</li>
      <li>And here's the numbers as <a href="/testimony.json">JSON</a>, if you want to get live data for a dashboard</li>
      <li>All the testimony as <a href="/testimony.pdf">One Big PDF</a></li>
      <li>All the testimony as <a href="/testimony.txt">A Plain Old Text File</a>, so you can search it for keywords and stuff</li>
    </ul></div>
{{- if .MissingEnabled}}
    <p>And <a href="/missing.txt">here is a list</a> of {{.MissingCount}} people who testified on {{.CompareBill}} in {{.CompareSession}} who haven't written in for {{.Bill}} yet. Can you reach out to any?</p>
{{- end}}
{{- if not .UpdatedAt.IsZero}}
    <p><small>Last updated {{.UpdatedAt.Format "Jan 2, 2006 15:04 MST"}}</small></p>
{{- end}}
  </footer>
</body>
</html>
`))
