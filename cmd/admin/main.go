package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/onexay/gitgraph/internal/graph"
	"github.com/onexay/gitgraph/internal/history"
	"github.com/onexay/gitgraph/internal/types"
)

const (
	defaultAPI = "http://localhost:8080"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type client struct {
	api    string
	format string
}

type scanResponse struct {
	Repository  string `json:"repository" yaml:"repository"`
	Path        string `json:"path" yaml:"path"`
	ArchiveKey  string `json:"archiveKey" yaml:"archiveKey"`
	Diff        struct {
		Added   int `json:"added" yaml:"added"`
		Removed int `json:"removed" yaml:"removed"`
	} `json:"diff" yaml:"diff"`
	Error       string `json:"error" yaml:"error,omitempty"`
	Diagnostics []struct {
		Kind    string `json:"kind" yaml:"kind"`
		Subject string `json:"subject" yaml:"subject"`
		Target  string `json:"target" yaml:"target"`
	} `json:"diagnostics" yaml:"diagnostics"`
	Stats struct {
		Commits  int `json:"commits" yaml:"commits"`
		Authors  int `json:"authors" yaml:"authors"`
		Files    int `json:"files" yaml:"files"`
		Branches int `json:"branches" yaml:"branches"`
		Tags     int `json:"tags" yaml:"tags"`
	} `json:"stats" yaml:"stats"`
}

type commitResponse struct {
	SHA       string `json:"sha" yaml:"sha"`
	Author    string `json:"author" yaml:"author"`
	Timestamp struct {
		DateTime string `json:"dateTime" yaml:"dateTime"`
	} `json:"timestamp" yaml:"timestamp"`
	Parents []string `json:"parents" yaml:"parents"`
	Changes []struct {
		Code string `json:"code" yaml:"code"`
		Path string `json:"path" yaml:"path"`
	} `json:"changes" yaml:"changes"`
}

type refResponse struct {
	Name   string `json:"name" yaml:"name"`
	Commit string `json:"commit" yaml:"commit"`
}

func main() {
	c := &client{}
	root := &cobra.Command{
		Use:          "gitgraph-admin",
		Short:        "Inspect git history graphs",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.api, "api", envDefault("GITGRAPH_API", defaultAPI), "Base URL of the gitgraph REST API")
	root.PersistentFlags().StringVarP(&c.format, "format", "o", "table", "Output format: table, json or yaml")

	root.AddCommand(
		&cobra.Command{
			Use:   "scan <path>...",
			Short: "Scan repositories through the API",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.scan(cmd.Context(), cmd.OutOrStdout(), args)
			},
		},
		&cobra.Command{
			Use:   "commits <repo>",
			Short: "List commits of the last scan",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.commits(cmd.Context(), cmd.OutOrStdout(), args[0])
			},
		},
		&cobra.Command{
			Use:   "refs <repo>",
			Short: "List branches and tags of the last scan",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.refs(cmd.Context(), cmd.OutOrStdout(), args[0])
			},
		},
		&cobra.Command{
			Use:   "dump <repo> [key]",
			Short: "Print an archived dump, the latest by default",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				key := "latest"
				if len(args) == 2 {
					key = args[1]
				}
				return c.dump(cmd.Context(), cmd.OutOrStdout(), args[0], key)
			},
		},
		localCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// localCommand builds a repository in process and prints its dump without a
// running server.
func localCommand() *cobra.Command {
	var (
		rng      string
		suffixes []string
	)
	cmd := &cobra.Command{
		Use:   "local <path>",
		Short: "Build and print a graph without the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := history.Locate(args[0])
			if err != nil {
				return err
			}
			reader, err := history.OpenGitReader(loc, rng)
			if err != nil {
				return err
			}
			g, err := graph.NewBuilder(graph.WithAcceptedSuffixes(suffixes...)).
				BuildFrom(cmd.Context(), types.Repository{Name: loc.Name, Path: loc.GitDir}, reader)
			if err != nil {
				return err
			}
			return graph.Render(cmd.OutOrStdout(), g)
		},
	}
	cmd.Flags().StringVar(&rng, "range", "", "Commit range, e.g. v1.0..HEAD")
	cmd.Flags().StringSliceVar(&suffixes, "suffix", nil, "Only record files with these suffixes")
	return cmd
}

func (c *client) scan(ctx context.Context, out io.Writer, paths []string) error {
	type request struct {
		Path string `json:"path"`
	}
	batch := make([]request, 0, len(paths))
	for _, p := range paths {
		batch = append(batch, request{Path: p})
	}
	body, err := json.Marshal(map[string]any{"batch": batch})
	if err != nil {
		return err
	}

	var results []scanResponse
	if err := c.do(ctx, http.MethodPost, "/scans", nil, bytes.NewReader(body), &results); err != nil {
		return err
	}
	return c.print(out, results, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Repo\tCommits\tAuthors\tFiles\tBranches\tTags\tUnresolved\tDiff\tKey\tError\n")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t+%d/-%d\t%s\t%s\n", lang.Check(r.Repository, r.Path),
				r.Stats.Commits, r.Stats.Authors, r.Stats.Files, r.Stats.Branches, r.Stats.Tags,
				len(r.Diagnostics), r.Diff.Added, r.Diff.Removed, r.ArchiveKey, r.Error)
		}
	})
}

func (c *client) commits(ctx context.Context, out io.Writer, repo string) error {
	var commits []commitResponse
	if err := c.do(ctx, http.MethodGet, "/commits", url.Values{"name": {repo}}, nil, &commits); err != nil {
		return err
	}
	return c.print(out, commits, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "SHA\tDate\tAuthor\tParents\tChanges\n")
		for _, cm := range commits {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", short(cm.SHA), cm.Timestamp.DateTime, cm.Author, len(cm.Parents), len(cm.Changes))
		}
	})
}

func (c *client) refs(ctx context.Context, out io.Writer, repo string) error {
	query := url.Values{"name": {repo}}
	var branches, tags []refResponse
	if err := c.do(ctx, http.MethodGet, "/branches", query, nil, &branches); err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodGet, "/tags", query, nil, &tags); err != nil {
		return err
	}
	payload := map[string][]refResponse{"branches": branches, "tags": tags}
	return c.print(out, payload, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Kind\tName\tCommit\n")
		for _, b := range branches {
			fmt.Fprintf(tw, "branch\t%s\t%s\n", b.Name, lang.Check(short(b.Commit), "(unresolved)"))
		}
		for _, t := range tags {
			fmt.Fprintf(tw, "tag\t%s\t%s\n", t.Name, lang.Check(short(t.Commit), "(unresolved)"))
		}
	})
}

func (c *client) dump(ctx context.Context, out io.Writer, repo, key string) error {
	var text string
	if err := c.do(ctx, http.MethodGet, "/dumps/"+url.PathEscape(key), url.Values{"name": {repo}}, nil, &text); err != nil {
		return err
	}
	_, err := io.WriteString(out, text)
	return err
}

// do sends a request to the API. A *string target receives the raw body.
func (c *client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, target any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	endpoint := strings.TrimRight(c.api, "/") + "/api/v1" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errm.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errm.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errm.Wrap(err, "read response")
	}
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusMultiStatus {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr)
		return errm.New(fmt.Sprintf("%s %s: %s %s", method, path, resp.Status, apiErr.Error))
	}

	if text, ok := target.(*string); ok {
		*text = string(data)
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return errm.Wrap(err, "decode response")
	}
	return nil
}

func (c *client) print(out io.Writer, payload any, table func(*tabwriter.Writer)) error {
	switch strings.ToLower(c.format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(payload)
	case "table", "":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return errm.New("unknown format " + c.format)
	}
}

func short(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
