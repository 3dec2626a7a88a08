package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/calmstack/jobkeep/pkg/client"
)

type command struct{}

func newAPIClient(f APIFlags) *client.Client {
	cfg := client.DefaultConfig()
	if f.APIUrl != "" {
		cfg.BaseURL = f.APIUrl
	}
	if f.APITimeout > 0 {
		cfg.Timeout = f.APITimeout
	}
	return client.New(cfg)
}

func requireDaemon(ctx context.Context, c *client.Client, f APIFlags) error {
	if !c.IsReachable(ctx) {
		url := f.APIUrl
		if url == "" {
			url = client.DefaultConfig().BaseURL
		}
		return fmt.Errorf("daemon not reachable at %s - start it first with 'jobkeep serve'", url)
	}
	return nil
}

// Run launches a new job on the daemon and prints its id.
func (c command) Run(f RunFlags, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("run requires a command, e.g. jobkeep run -- sleep 30")
	}
	ctx := context.Background()
	api := newAPIClient(f.APIFlags)
	if err := requireDaemon(ctx, api, f.APIFlags); err != nil {
		return err
	}
	id, err := api.Launch(ctx, client.LaunchRequest{Command: args, TrackingLabel: f.Label})
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

// Status prints one job record, or all records when no id is given.
func (c command) Status(f StatusFlags, args []string) error {
	ctx := context.Background()
	api := newAPIClient(f.APIFlags)
	if err := requireDaemon(ctx, api, f.APIFlags); err != nil {
		return err
	}
	if len(args) == 0 {
		recs, err := api.List(ctx)
		if err != nil {
			return err
		}
		printJSON(recs)
		return nil
	}
	rec, err := api.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("job %q not found", args[0])
	}
	printJSON(rec)
	return nil
}

// Logs prints job output, either the full log or the trailing lines.
func (c command) Logs(f LogsFlags, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("logs requires a job id")
	}
	ctx := context.Background()
	api := newAPIClient(f.APIFlags)
	if err := requireDaemon(ctx, api, f.APIFlags); err != nil {
		return err
	}
	if f.Tail > 0 {
		lines, err := api.LogTail(ctx, args[0], f.Tail)
		if err != nil {
			return err
		}
		if len(lines) > 0 {
			fmt.Println(strings.Join(lines, "\n"))
		}
		return nil
	}
	content, err := api.FullLog(ctx, args[0], f.MaxChars)
	if err != nil {
		return err
	}
	fmt.Print(content)
	return nil
}

// Stop terminates a job and prints the outcome.
func (c command) Stop(f StopFlags, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("stop requires a job id")
	}
	ctx := context.Background()
	api := newAPIClient(f.APIFlags)
	if err := requireDaemon(ctx, api, f.APIFlags); err != nil {
		return err
	}
	result, err := api.Terminate(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}

// Prune removes terminal jobs and prints the removed ids.
func (c command) Prune(f PruneFlags) error {
	ctx := context.Background()
	api := newAPIClient(f.APIFlags)
	if err := requireDaemon(ctx, api, f.APIFlags); err != nil {
		return err
	}
	removed, err := api.Prune(ctx)
	if err != nil {
		return err
	}
	printJSON(removed)
	return nil
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
