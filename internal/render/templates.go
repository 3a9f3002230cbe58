package render

import "html/template"

const starPath = `M12 2l3.09 6.26L22 9.27l-5 4.87 1.18 6.88L12 17.77l-6.18 3.25L7 14.14 2 9.27l6.91-1.01L12 2z`

var templates = template.Must(template.New("render").Funcs(template.FuncMap{
	"starPath": func() string { return starPath },
}).Parse(`
{{define "star"}}
{{- if eq . "full"}}<svg class="star star-full" width="16" height="16" fill="currentColor" viewBox="0 0 24 24"><path d="{{starPath}}"/></svg>
{{- else if eq . "half"}}<svg class="star star-half" width="16" height="16" fill="currentColor" viewBox="0 0 24 24"><path d="M12 2l3.09 6.26L22 9.27l-5 4.87 1.18 6.88L12 17.77V2z"/></svg>
{{- else}}<svg class="star star-empty" width="16" height="16" fill="none" stroke="currentColor" stroke-width="2" viewBox="0 0 24 24"><path d="{{starPath}}"/></svg>
{{- end}}
{{- end}}

{{define "card-body"}}
<div class="center-card">
  <div class="center-header">
    {{- if .C.LogoURL}}<img class="center-logo" src="{{.C.LogoURL}}" alt="" loading="lazy">{{end}}
    <h3 class="center-name">{{.C.Name}}</h3>
    {{- if .C.HasRating}}
    <div class="center-rating">
      <span class="center-stars">{{range .C.Stars}}{{template "star" .}}{{end}}</span>
      <span class="center-rating-text">{{.C.Rating}} ({{.C.ReviewCount}} {{.L.Reviews}})</span>
      {{- if .C.ReviewURL}} <a class="center-reviews" href="{{.C.ReviewURL}}" target="_blank" rel="noopener">{{.L.SeeReviews}}</a>{{end}}
    </div>
    {{- end}}
    {{- if .C.Distance}}<span class="center-distance">{{.C.Distance}}</span>{{end}}
  </div>
  <div class="center-body">
    <div class="center-info">
      <div class="center-info-item"><span class="center-address">{{.C.Address}}</span></div>
      {{- if .C.Phone}}
      <div class="center-info-item"><a class="center-phone" href="{{.C.Tel}}">{{.C.PhoneDisplay}}</a></div>
      {{- end}}
    </div>
    <div class="center-actions">
      {{- if .C.BookingURL}}
      <a href="{{.C.BookingURL}}" target="_blank" rel="noopener" class="btn btn-primary btn-sm">{{.L.Book}}</a>
      {{- end}}
      {{- if .C.Phone}}
      <a href="{{.C.Tel}}" class="btn btn-secondary btn-sm">{{.L.Call}}</a>
      {{- end}}
    </div>
  </div>
</div>
{{- end}}

{{define "card"}}{{template "card-body" .}}{{end}}

{{define "cards"}}{{range .}}{{template "card-body" .}}{{end}}{{end}}

{{define "no-results"}}
<div class="no-results">
  <h3>{{.Title}}</h3>
  <p>{{.Text}}</p>
</div>
{{- end}}

{{define "skeleton"}}{{range .}}
<div class="center-card center-card-skeleton">
  <div class="center-header">
    <div class="skeleton skeleton-title"></div>
    <div class="skeleton skeleton-subtitle"></div>
  </div>
  <div class="center-body">
    <div class="skeleton skeleton-line"></div>
    <div class="skeleton skeleton-line-short"></div>
    <div class="center-actions">
      <div class="skeleton skeleton-button"></div>
      <div class="skeleton skeleton-button"></div>
    </div>
  </div>
</div>
{{- end}}{{end}}

{{define "error"}}
<div class="load-error">
  <h3>{{.Title}}</h3>
  <p>{{.Message}}</p>
  <form method="post" action="{{.Action}}"><button type="submit" class="btn btn-primary" data-action="retry">{{.Retry}}</button></form>
</div>
{{- end}}

{{define "popup"}}
<div class="map-popup">
  <h4 class="map-popup-title">{{.C.Name}}</h4>
  <p class="map-popup-address">{{.C.Address}}</p>
  <div class="map-popup-actions">
    {{- if .C.BookingURL}}<a href="{{.C.BookingURL}}" target="_blank" rel="noopener" class="btn btn-primary btn-sm">{{.L.Book}}</a>{{end}}
    {{- if .C.Phone}}<a href="{{.C.Tel}}" class="btn btn-secondary btn-sm">{{.L.Call}}</a>{{end}}
  </div>
</div>
{{- end}}

{{define "map-error"}}<div class="map-error" role="alert"><p>{{.}}</p></div>{{end}}
`))
