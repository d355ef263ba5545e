package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/finsight/planservice/internal/config"
	"github.com/finsight/planservice/internal/plan"
	"github.com/finsight/planservice/internal/planclient"

	log "github.com/sirupsen/logrus"
)

// main runs the plan client CLI against a running plan service.
func main() {
	if errRun := run(context.Background(), os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

func usage() string {
	return strings.Join([]string{
		"usage: planctl [flags] <command>",
		"commands:",
		"  context             fetch and print the plan context",
		"  save                patch the plan context",
		"  trial               start the one-time trial",
		"  presets             list tier presets",
		"  override            apply a local debug override from -file",
		"  clear-override      remove the local debug override",
	}, "\n")
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("planctl", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	baseURL := fs.String("url", "", "plan service base URL (overrides config)")
	token := fs.String("token", "", "account token (overrides config and env)")
	tier := fs.String("tier", "", "plan tier for save/trial")
	entitlements := fs.String("entitlements", "", "comma-separated entitlement keys for save")
	note := fs.String("note", "", "change note for save")
	actor := fs.String("by", "", "actor recorded for save/trial")
	days := fs.Int("days", 0, "trial duration in days")
	file := fs.String("file", "", "JSON payload file for override")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("missing command\n%s", usage())
	}

	clientCfg, errCfg := config.LoadClientConfig(config.ResolveConfigPath(firstNonEmpty(*cfgPath, os.Getenv(config.EnvConfigPath))))
	if errCfg != nil {
		return errCfg
	}
	if strings.TrimSpace(*baseURL) != "" {
		clientCfg.BaseURL = *baseURL
	}
	if strings.TrimSpace(*token) != "" {
		clientCfg.AccountToken = *token
	}

	client := planclient.New(planclient.Options{
		BaseURL:           clientCfg.BaseURL,
		AccountToken:      clientCfg.AccountToken,
		DebugToolsEnabled: clientCfg.DebugTools,
		OverridePath:      clientCfg.OverridePath,
	})

	switch fs.Arg(0) {
	case "context":
		if errFetch := client.Fetch(ctx); errFetch != nil {
			return errFetch
		}
		return printSnapshot(client.Snapshot())
	case "save":
		if errFetch := client.Fetch(ctx); errFetch != nil {
			return errFetch
		}
		current := client.Snapshot().Plan
		input := planclient.SaveInput{
			PlanTier:     string(current.Tier),
			ExpiresAt:    current.ExpiresAt,
			Entitlements: current.Entitlements,
			UpdatedBy:    *actor,
			ChangeNote:   *note,
		}
		if strings.TrimSpace(*tier) != "" {
			input.PlanTier = string(plan.ParseTier(*tier))
		}
		if strings.TrimSpace(*entitlements) != "" {
			input.Entitlements = plan.NormalizeEntitlements(strings.Split(*entitlements, ","))
		}
		snap, errSave := client.Save(ctx, input)
		if errSave != nil {
			return errSave
		}
		return printSnapshot(snap)
	case "trial":
		snap, errTrial := client.StartTrial(ctx, &planclient.TrialInput{
			Actor:        *actor,
			DurationDays: *days,
			Tier:         *tier,
		})
		if errTrial != nil {
			return errTrial
		}
		return printSnapshot(snap)
	case "presets":
		if errPresets := client.FetchPresets(ctx); errPresets != nil {
			return errPresets
		}
		return printJSON(client.Snapshot().Presets)
	case "override":
		if strings.TrimSpace(*file) == "" {
			return fmt.Errorf("override requires -file")
		}
		data, errRead := os.ReadFile(*file)
		if errRead != nil {
			return fmt.Errorf("read override file: %w", errRead)
		}
		if errApply := client.ApplyDebugOverride(plan.ParsePayload(data)); errApply != nil {
			return errApply
		}
		return printSnapshot(client.Snapshot())
	case "clear-override":
		if errClear := client.ClearDebugOverride(); errClear != nil {
			return errClear
		}
		return printSnapshot(client.Snapshot())
	default:
		return fmt.Errorf("unknown command %q\n%s", fs.Arg(0), usage())
	}
}

func printSnapshot(snap planclient.Snapshot) error {
	out := map[string]any{
		"plan":        snap.Plan.Payload(),
		"initialized": snap.Initialized,
	}
	if snap.FetchError != "" {
		out["fetchError"] = snap.FetchError
	}
	if snap.SaveError != "" {
		out["saveError"] = snap.SaveError
	}
	if snap.TrialError != "" {
		out["trialError"] = snap.TrialError
	}
	return printJSON(out)
}

func printJSON(v any) error {
	data, errMarshal := json.MarshalIndent(v, "", "  ")
	if errMarshal != nil {
		return errMarshal
	}
	fmt.Println(string(data))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
