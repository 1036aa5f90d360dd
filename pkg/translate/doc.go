// Package translate converts detected-language snippets between English and
// French through an external translation endpoint, and owns the ISO 639
// language-code mapping used at the API edges.
package translate
