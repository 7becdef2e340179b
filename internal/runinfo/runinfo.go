// Package runinfo detects CI metadata attached to case summaries.
package runinfo

import (
	"os"
	"regexp"
	"strings"
)

var pullRefPattern = regexp.MustCompile(`^refs/pull/([0-9]+)/`)

// Info describes the CI run that produced a case.
type Info struct {
	CI          bool   `json:"ci,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Commit      string `json:"commit,omitempty"`
	Job         string `json:"job,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	PullRequest string `json:"pull_request,omitempty"`
	BuildURL    string `json:"build_url,omitempty"`
}

type field struct {
	dst      func(*Info) *string
	override string
	fallback []string
}

var fields = []field{
	{func(i *Info) *string { return &i.Provider }, "TLPWHERE_CI_PROVIDER", []string{"CI_PROVIDER", "CI_SYSTEM"}},
	{func(i *Info) *string { return &i.Repository }, "TLPWHERE_CI_REPOSITORY", []string{"GITHUB_REPOSITORY", "CI_PROJECT_PATH", "BUILD_REPOSITORY_NAME"}},
	{func(i *Info) *string { return &i.Branch }, "TLPWHERE_CI_BRANCH", []string{"GITHUB_HEAD_REF", "GITHUB_REF_NAME", "CI_COMMIT_REF_NAME", "BRANCH_NAME", "GIT_BRANCH"}},
	{func(i *Info) *string { return &i.Commit }, "TLPWHERE_CI_COMMIT", []string{"GITHUB_SHA", "CI_COMMIT_SHA", "GIT_COMMIT"}},
	{func(i *Info) *string { return &i.Job }, "TLPWHERE_CI_JOB", []string{"GITHUB_JOB", "CI_JOB_NAME", "JOB_NAME"}},
	{func(i *Info) *string { return &i.RunID }, "TLPWHERE_CI_RUN_ID", []string{"GITHUB_RUN_ID", "CI_PIPELINE_ID", "BUILD_ID"}},
	{func(i *Info) *string { return &i.PullRequest }, "TLPWHERE_CI_PULL_REQUEST", []string{"GITHUB_PR_NUMBER", "CI_MERGE_REQUEST_IID", "PR_NUMBER"}},
	{func(i *Info) *string { return &i.BuildURL }, "TLPWHERE_CI_BUILD_URL", []string{"CI_JOB_URL", "BUILD_URL"}},
}

// FromEnv reads run metadata from the environment. TLPWHERE_CI_* variables
// win over provider defaults. It returns nil outside CI when nothing is set.
func FromEnv() *Info {
	return detect(os.LookupEnv)
}

func detect(lookup func(string) (string, bool)) *Info {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	info := Info{}
	for _, f := range fields {
		dst := f.dst(&info)
		if v := get(f.override); v != "" {
			*dst = v
			continue
		}
		for _, key := range f.fallback {
			if v := get(key); v != "" {
				*dst = v
				break
			}
		}
	}

	switch {
	case truthy(get("GITHUB_ACTIONS")):
		setIfEmpty(&info.Provider, "github_actions")
		if info.PullRequest == "" {
			if m := pullRefPattern.FindStringSubmatch(get("GITHUB_REF")); len(m) > 1 {
				info.PullRequest = m[1]
			}
		}
		if info.BuildURL == "" && info.Repository != "" && info.RunID != "" {
			server := get("GITHUB_SERVER_URL")
			if server == "" {
				server = "https://github.com"
			}
			info.BuildURL = strings.TrimRight(server, "/") + "/" + info.Repository + "/actions/runs/" + info.RunID
		}
	case truthy(get("GITLAB_CI")):
		setIfEmpty(&info.Provider, "gitlab_ci")
	case get("JENKINS_URL") != "":
		setIfEmpty(&info.Provider, "jenkins")
	}

	info.Provider = strings.ToLower(info.Provider)
	info.Branch = strings.TrimPrefix(strings.TrimPrefix(info.Branch, "refs/heads/"), "origin/")
	info.CI = truthy(get("CI")) || info.Provider != "" || info.RunID != ""
	if v, ok := lookup("TLPWHERE_CI"); ok && strings.TrimSpace(v) != "" {
		info.CI = truthy(v)
	}
	if info.CI && info.Provider == "" {
		info.Provider = "generic"
	}
	if !info.CI && info == (Info{}) {
		return nil
	}
	return &info
}

func setIfEmpty(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

func truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
