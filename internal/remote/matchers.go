// internal/remote/matchers.go
package remote

import (
	"regexp"
	"strings"

	"gitledger/internal/model"
)

// nestedSlashThreshold is the slash count above which a scheme URL is read as a nested-group path.
// github.com style URLs have 4 slashes, googlesource style URLs have 3.
const nestedSlashThreshold = 4

var (
	azureHTTPSPattern  = regexp.MustCompile(`^(?:https?://)?(?:[^@/]+@)?dev\.azure\.com/([^/]+)/([^/]+)/_git/([^/]+)$`)
	azureSSHPattern    = regexp.MustCompile(`^(?:ssh://)?(?:[^@/]+@)?ssh\.dev\.azure\.com:v3/([^/]+)/([^/]+)/([^/]+)$`)
	vstsHTTPSPattern   = regexp.MustCompile(`^(?:https?://)?(?:[^@/]+@)?([^./@]+)\.visualstudio\.com/(?:DefaultCollection/)?([^/]+)/_git/([^/]+)$`)
	vstsSSHPattern     = regexp.MustCompile(`^(?:ssh://)?(?:[^@/]+@)?vs-ssh\.visualstudio\.com:v3/([^/]+)/([^/]+)/([^/]+)$`)
	bitbucketSCM       = regexp.MustCompile(`^(?i:https?|ssh)://(?:[^@/]+@)?([^/:@]+)(?::\d+)?/scm/([^/]+)/([^/]+)$`)
	sshShorthand       = regexp.MustCompile(`^[\w.-]+@([\w.-]+):(?:(.+)/)?([^/]+)$`)
	nestedGroupPattern = regexp.MustCompile(`^\w+://(?:[^@/]+@)?([^/:@]+)(?::\d+)?((?:/[^/]+)*?)/([^/]+)$`)
	strictPattern      = regexp.MustCompile(`^(?i:https?|git|ssh)://(?:[^@/]+@)?([\w.-]+)(?::\d+)?/([\w.-]+)/([\w.-]+)$`)
	googlePattern      = regexp.MustCompile(`^\w+://(?:[^@/]+@)?([^/?#:@]+)(?::\d+)?/([^/]+)$`)
)

// publicBitbucketHost serves /scm/ paths as ordinary owners, so it never matches the server pattern.
const publicBitbucketHost = "bitbucket.org"

// DefaultMatchers returns the built-in cascade, most specific first.
func DefaultMatchers() []Matcher {
	return []Matcher{
		{Name: "azure-devops", Match: matchAzure},
		{Name: "bitbucket-server", Match: matchBitbucketServer},
		{Name: "ssh-shorthand", Match: matchSSHShorthand},
		{Name: "nested-group", Match: matchNestedGroup},
		{Name: "owner-repo", Match: matchStrict},
		{Name: "path-only", Match: matchPathOnly},
		{Name: "positional-fallback", Confidence: ConfidenceLow, Match: matchPositional},
	}
}

func matchAzure(url string) (model.RepositoryIdentity, bool) {
	if m := azureHTTPSPattern.FindStringSubmatch(url); m != nil {
		return model.NewIdentity("dev.azure.com", m[1]+"-"+m[2], m[3]), true
	}
	if m := azureSSHPattern.FindStringSubmatch(url); m != nil {
		return model.NewIdentity("dev.azure.com", m[1]+"-"+m[2], m[3]), true
	}
	// The legacy host already carries the organization, so the owner is the project alone.
	if m := vstsHTTPSPattern.FindStringSubmatch(url); m != nil {
		return model.NewIdentity(m[1]+".visualstudio.com", m[2], m[3]), true
	}
	if m := vstsSSHPattern.FindStringSubmatch(url); m != nil {
		return model.NewIdentity(m[1]+".visualstudio.com", m[2], m[3]), true
	}
	return model.RepositoryIdentity{}, false
}

func matchBitbucketServer(url string) (model.RepositoryIdentity, bool) {
	m := bitbucketSCM.FindStringSubmatch(url)
	if m == nil || strings.EqualFold(m[1], publicBitbucketHost) {
		return model.RepositoryIdentity{}, false
	}
	return model.NewIdentity(m[1], m[2], m[3]), true
}

func matchSSHShorthand(url string) (model.RepositoryIdentity, bool) {
	m := sshShorthand.FindStringSubmatch(url)
	if m == nil {
		return model.RepositoryIdentity{}, false
	}
	return model.NewIdentity(m[1], m[2], m[3]), true
}

func matchNestedGroup(url string) (model.RepositoryIdentity, bool) {
	if strings.Count(url, "/") <= nestedSlashThreshold {
		return model.RepositoryIdentity{}, false
	}
	m := nestedGroupPattern.FindStringSubmatch(url)
	if m == nil {
		return model.RepositoryIdentity{}, false
	}
	return model.NewIdentity(m[1], m[2], m[3]), true
}

func matchStrict(url string) (model.RepositoryIdentity, bool) {
	m := strictPattern.FindStringSubmatch(url)
	if m == nil {
		return model.RepositoryIdentity{}, false
	}
	return model.NewIdentity(m[1], m[2], m[3]), true
}

func matchPathOnly(url string) (model.RepositoryIdentity, bool) {
	m := googlePattern.FindStringSubmatch(url)
	if m == nil {
		return model.RepositoryIdentity{}, false
	}
	return model.NewIdentity(m[1], "", m[2]), true
}

// matchPositional reads scheme://host/owner/repo by index without validating the parts.
func matchPositional(url string) (model.RepositoryIdentity, bool) {
	parts := strings.Split(url, "/")
	if len(parts) < 5 || parts[1] != "" || !strings.HasSuffix(parts[0], ":") {
		return model.RepositoryIdentity{}, false
	}
	host := parts[2]
	if at := strings.LastIndex(host, "@"); at >= 0 {
		host = host[at+1:]
	}
	if colon := strings.Index(host, ":"); colon >= 0 {
		host = host[:colon]
	}
	return model.NewIdentity(host, parts[3], parts[4]), true
}
