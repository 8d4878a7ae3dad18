package render

// EmptyMessage is shown when there is nothing to list.
const EmptyMessage = "No services available at the moment. Please check back later."

const cardsTemplate = `
{{define "cards"}}
{{- if not .}}
<div class="service-detail-card service-empty">
    <p>{{emptyMessage}}</p>
</div>
{{- else}}
{{- range .}}{{template "card" .}}{{end}}
{{- end}}
{{end}}

{{define "card"}}
<div class="service-detail-card clickable-service"
     data-id="{{.ID}}"
     data-service="{{.Name}}"
     data-keywords="{{.Keywords}}"
     data-price="{{.Price}}"
     data-images="{{toJSON .Images}}">
    {{- if .HasImage}}
    <div class="service-image">
        <img src="{{index .Images 0}}" alt="{{.Name}}" loading="lazy">
    </div>
    {{- end}}
    <div class="service-icon-wrapper">
        <i class="fas {{.Icon}}"></i>
    </div>
    <h2>{{.Name}}</h2>
    {{- if .DescriptionHTML}}
    <div class="service-description">{{.DescriptionHTML}}</div>
    {{- end}}
    {{- if .Features}}
    <ul class="service-features">
        {{- range .Features}}
        <li>{{.}}</li>
        {{- end}}
    </ul>
    {{- end}}
    <div class="service-card-footer">
        <span class="service-price-preview">{{.Price}}</span>
        {{- if eq .Status "unavailable"}}
        <span class="service-status">Currently unavailable</span>
        {{- end}}
        <button class="btn-view-service" type="button">View Details</button>
    </div>
</div>
{{end}}

{{define "detail"}}
<div class="service-detail" data-id="{{.ID}}">
    <div class="service-detail-header">
        <i class="fas {{.Icon}}"></i>
        <h2>{{.Name}}</h2>
        <span class="service-category">{{.Category}}</span>
    </div>
    {{- if .HasImage}}
    <div class="service-gallery">
        {{- range .Images}}
        <img src="{{.}}" alt="{{$.Name}}" loading="lazy">
        {{- end}}
    </div>
    {{- end}}
    {{- if .DescriptionHTML}}
    <div class="service-description">{{.DescriptionHTML}}</div>
    {{- end}}
    {{- if .Features}}
    <ul class="service-features">
        {{- range .Features}}
        <li>{{.}}</li>
        {{- end}}
    </ul>
    {{- end}}
    {{- if .ProductTypes}}
    <table class="service-tiers">
        <thead><tr><th>Option</th><th>Price</th><th>Details</th></tr></thead>
        <tbody>
        {{- range .ProductTypes}}
            <tr><td>{{.Name}}</td><td>{{.Price}}</td><td>{{.Description}}</td></tr>
        {{- end}}
        </tbody>
    </table>
    {{- end}}
    <p class="service-price">{{.Price}}</p>
</div>
{{end}}
`
