package expand

import (
	"net/url"
	"strings"

	"github.com/coolbeans/rdfedits/pkg/prefix"
)

// TermResolver turns a single token into an absolute IRI (without angle
// brackets). Resolvers are consulted in order by ChainResolver.
type TermResolver interface {
	Resolve(token string) (string, bool)
}

// PrefixResolver is the fast path: prefix:local against the declared prefixes.
type PrefixResolver struct {
	Registry *prefix.Registry
}

// Resolve implements TermResolver.
func (prefixResolver PrefixResolver) Resolve(token string) (string, bool) {
	if prefixResolver.Registry == nil {
		return "", false
	}
	prefixName, local, ok := SplitPrefixedName(token)
	if !ok {
		return "", false
	}
	namespace, ok := prefixResolver.Registry.Resolve(prefixName)
	if !ok {
		return "", false
	}
	return namespace + local, true
}

// VocabularyResolver resolves prefixed names against a fixed set of
// well-known vocabularies, for tables that use rdf: or xsd: without
// declaring them.
type VocabularyResolver struct {
	Namespaces map[string]string
}

// WellKnownNamespaces are the vocabularies bound when no declaration exists.
var WellKnownNamespaces = map[string]string{
	"rdf":     "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"rdfs":    "http://www.w3.org/2000/01/rdf-schema#",
	"xsd":     "http://www.w3.org/2001/XMLSchema#",
	"owl":     "http://www.w3.org/2002/07/owl#",
	"xml":     "http://www.w3.org/XML/1998/namespace",
	"dc":      "http://purl.org/dc/elements/1.1/",
	"dcterms": "http://purl.org/dc/terms/",
	"foaf":    "http://xmlns.com/foaf/0.1/",
	"skos":    "http://www.w3.org/2004/02/skos/core#",
	"schema":  "https://schema.org/",
	"prov":    "http://www.w3.org/ns/prov#",
	"sh":      "http://www.w3.org/ns/shacl#",
	"dcat":    "http://www.w3.org/ns/dcat#",
}

// Resolve implements TermResolver.
func (vocabularyResolver VocabularyResolver) Resolve(token string) (string, bool) {
	prefixName, local, ok := SplitPrefixedName(token)
	if !ok {
		return "", false
	}
	namespace, ok := vocabularyResolver.Namespaces[prefixName]
	if !ok {
		return "", false
	}
	return namespace + local, true
}

// SchemeResolver accepts tokens that already are absolute URIs with one of
// the listed schemes. Hierarchical URIs must carry "//"; urn-style opaque
// URIs need a non-empty opaque part.
type SchemeResolver struct {
	Schemes []string
}

// Resolve implements TermResolver.
func (schemeResolver SchemeResolver) Resolve(token string) (string, bool) {
	if strings.ContainsAny(token, " \t\n<>\"") {
		return "", false
	}
	parsed, err := url.Parse(token)
	if err != nil || parsed.Scheme == "" {
		return "", false
	}
	for _, scheme := range schemeResolver.Schemes {
		if !strings.EqualFold(parsed.Scheme, scheme) {
			continue
		}
		if parsed.Opaque != "" || strings.HasPrefix(token[len(parsed.Scheme)+1:], "//") {
			return token, true
		}
		return "", false
	}
	return "", false
}

// ChainResolver returns the first successful resolution.
type ChainResolver []TermResolver

// Resolve implements TermResolver.
func (chainResolver ChainResolver) Resolve(token string) (string, bool) {
	for _, resolver := range chainResolver {
		if iri, ok := resolver.Resolve(token); ok {
			return iri, true
		}
	}
	return "", false
}

// DefaultFallback is consulted after the declared prefixes and plain
// http(s) URIs: well-known vocabularies, then other absolute URI schemes.
func DefaultFallback() TermResolver {
	return ChainResolver{
		VocabularyResolver{Namespaces: WellKnownNamespaces},
		SchemeResolver{Schemes: []string{"urn", "tag", "did", "file", "ftp"}},
	}
}

// withoutSchemes drops SchemeResolvers from resolver, looking into chains.
func withoutSchemes(resolver TermResolver) TermResolver {
	switch typed := resolver.(type) {
	case SchemeResolver:
		return ChainResolver{}
	case ChainResolver:
		filtered := make(ChainResolver, 0, len(typed))
		for _, inner := range typed {
			filtered = append(filtered, withoutSchemes(inner))
		}
		return filtered
	}
	return resolver
}
