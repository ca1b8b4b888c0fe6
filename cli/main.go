package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/upul/ml-dev-assignment/pkg/health"
	"github.com/upul/ml-dev-assignment/pkg/logging"
)

var Version = "dev"

type options struct {
	serverURL string
	timeout   time.Duration
	retries   int
	verbose   bool
}

type statistics struct {
	API           string `json:"api"`
	Count         int    `json:"number of calls in current minute"`
	WindowSeconds int    `json:"window_seconds"`
}

type seriesList struct {
	WindowSeconds int `json:"window_seconds"`
	Series        []struct {
		API   string `json:"api"`
		Count int    `json:"count"`
	} `json:"series"`
}

type prediction struct {
	RequestID json.RawMessage `json:"request_id"`
	Language  string          `json:"language"`
	Sentiment []struct {
		Type  string  `json:"sentiment_type"`
		Score float64 `json:"sentiment_score"`
	} `json:"sentiment"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "sentimentctl",
		Short:         "sentimentctl - operate the sentiment serving API",
		Long:          "Query health, request statistics and predictions of a running sentiment server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.serverURL, "server", "s", "http://localhost:8080", "Sentiment server URL")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Per-request timeout")
	flags.IntVar(&opts.retries, "retries", 3, "Retries for failed requests")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log retries")

	rootCmd.AddCommand(
		healthCmd(opts),
		statsCmd(opts),
		seriesCmd(opts),
		predictCmd(opts),
		versionCmd(),
	)
	return rootCmd
}

func healthCmd(opts *options) *cobra.Command {
	var maxLatency time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the server health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: opts.timeout}
			status := health.Check(cmd.Context(), client, strings.TrimSuffix(opts.serverURL, "/"), maxLatency)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server:         %s\n", opts.serverURL)
			fmt.Fprintf(out, "Reachable:      %v\n", status.ServerReachable)
			fmt.Fprintf(out, "Latency:        %s\n", status.Latency.Round(time.Millisecond))
			fmt.Fprintf(out, "Health calls:   %d\n", status.HealthCalls)
			for _, issue := range status.Issues {
				fmt.Fprintf(out, "Issue:          %s\n", issue)
			}
			if !status.Healthy {
				return fmt.Errorf("server unhealthy")
			}
			fmt.Fprintln(out, "Status:         healthy")
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxLatency, "max-latency", time.Second, "Fail when the health probe is slower than this")
	return cmd
}

func statsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [api...]",
		Short: "Show calls per API within the current window",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(opts)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "API\tCALLS\tWINDOW")
			for _, api := range args {
				var stats statistics
				if err := c.getJSON(cmd.Context(), "/api/v1/statistics?api="+url.QueryEscape(api), &stats); err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d\t%ds\n", stats.API, stats.Count, stats.WindowSeconds)
			}
			return w.Flush()
		},
	}
}

func seriesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "series",
		Aliases: []string{"ls", "list"},
		Short:   "List every API the server has counted",
		RunE: func(cmd *cobra.Command, args []string) error {
			var list seriesList
			if err := newClient(opts).getJSON(cmd.Context(), "/api/v1/statistics/series", &list); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "API\tCALLS (last %ds)\n", list.WindowSeconds)
			for _, s := range list.Series {
				fmt.Fprintf(w, "%s\t%d\n", s.API, s.Count)
			}
			return w.Flush()
		},
	}
}

func predictCmd(opts *options) *cobra.Command {
	var requestID, language, encoding string
	cmd := &cobra.Command{
		Use:   "predict [text]",
		Short: "Score a piece of text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				requestID = xid.New().String()
			}
			body := map[string]string{
				"request_id":    requestID,
				"text":          args[0],
				"language":      language,
				"encoding_type": encoding,
			}
			var pred prediction
			if err := newClient(opts).postJSON(cmd.Context(), "/api/v1/predict", body, &pred); err != nil {
				return err
			}

			sort.SliceStable(pred.Sentiment, func(i, j int) bool {
				return pred.Sentiment[i].Score > pred.Sentiment[j].Score
			})
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Request: %s (%s)\n", strings.Trim(string(pred.RequestID), `"`), pred.Language)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SENTIMENT\tSCORE")
			for _, s := range pred.Sentiment {
				fmt.Fprintf(w, "%s\t%.4f\n", s.Type, s.Score)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&requestID, "id", "", "Request ID (generated when empty)")
	cmd.Flags().StringVar(&language, "language", "en-US", "Language of the text")
	cmd.Flags().StringVar(&encoding, "encoding", "UTF-8", "Encoding of the text")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sentimentctl version %s\n", Version)
		},
	}
}

type apiClient struct {
	baseURL string
	http    *http.Client
	retry   *retrier
}

// apiError is a non-200 response from the server.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("server returned status %d", e.status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.status, e.message)
}

func newClient(opts *options) *apiClient {
	logger := zerolog.Nop()
	if opts.verbose {
		logger = logging.Bootstrap(os.Stderr).Level(zerolog.DebugLevel)
	}
	return &apiClient{
		baseURL: strings.TrimSuffix(opts.serverURL, "/"),
		http:    &http.Client{Timeout: opts.timeout},
		retry:   newRetrier(200*time.Millisecond, 2*time.Second, opts.retries, logger),
	}
}

func (c *apiClient) getJSON(ctx context.Context, path string, into any) error {
	return c.send(ctx, http.MethodGet, path, nil, into)
}

func (c *apiClient) postJSON(ctx context.Context, path string, body, into any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPost, path, data, into)
}

func (c *apiClient) send(ctx context.Context, method, path string, body []byte, into any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.retry.do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			var payload struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(data, &payload)
			return &apiError{status: resp.StatusCode, message: payload.Message}
		}
		return json.Unmarshal(data, into)
	}, retryPolicy(method))
}
