package models

// Page is a rendered document as returned by the browser
type Page struct {
	URL  string
	HTML string
}
