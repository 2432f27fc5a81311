package notification

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/dustin/go-humanize"

	"github.com/bher20/wattscope/internal/billing"
	"github.com/bher20/wattscope/internal/storage"
)

var digestTmpl = template.Must(template.New("digest").Funcs(template.FuncMap{
	"money": func(v float64) string { return humanize.FormatFloat("#,###.##", v) },
	"units": func(v float64) string { return humanize.FormatFloat("#,###.###", v) },
}).Parse(`<h2>Your electricity bill so far</h2>
<p>Hello {{.Name}},</p>
<p>Across {{.Summary.Events}} saved usage {{if eq .Summary.Events 1}}entry{{else}}entries{{end}} you have used
<strong>{{units .Summary.TotalUnits}} kWh</strong> on tariff {{.Summary.Category}}.</p>
<table>
<tr><td>Slab</td><td>{{.Summary.SlabLabel}}</td></tr>
<tr><td>Rate per unit</td><td>Rs {{money .Summary.RatePerUnit}}</td></tr>
<tr><td>Energy charge</td><td>Rs {{money .Summary.EnergyCost}}</td></tr>
<tr><td>Fixed charge</td><td>Rs {{money .Summary.FixedCharge}}</td></tr>
<tr><td><strong>Total bill</strong></td><td><strong>Rs {{money .Summary.TotalCost}}</strong></td></tr>
</table>
`))

// RenderDigest builds the subject and HTML body of a bill digest email.
func RenderDigest(user storage.User, sum billing.Summary) (subject, body string, err error) {
	name := user.Username
	if name == "" {
		name = user.Email
	}
	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, struct {
		Name    string
		Summary billing.Summary
	}{name, sum}); err != nil {
		return "", "", err
	}
	subject = fmt.Sprintf("Your bill so far: Rs %s (%s)", humanize.FormatFloat("#,###.##", sum.TotalCost), sum.SlabLabel)
	return subject, buf.String(), nil
}
