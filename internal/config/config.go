// Package config holds the explicit run configuration for stackpilot.
// All settings are carried in one struct passed to the drivers; nothing reads
// ambient environment variables past the initial load.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the full configuration for a pipeline run.
type Config struct {
	AWS       AWSConfig       `json:"aws"`
	Backend   BackendConfig   `json:"backend"`
	Terraform TerraformConfig `json:"terraform"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Notify    NotifyConfig    `json:"notify"`
	Run       RunConfig       `json:"run"`
}

// AWSConfig holds region and endpoint settings shared by all AWS clients.
type AWSConfig struct {
	Region   string `json:"region" env:"STACKPILOT_AWS_REGION" desc:"AWS region for backend resources"`
	Endpoint string `json:"endpoint,omitempty" env:"STACKPILOT_AWS_ENDPOINT" desc:"Custom AWS endpoint (for LocalStack)"`
}

// BackendConfig identifies the remote state backend resources.
type BackendConfig struct {
	Bucket         string `json:"bucket" env:"STACKPILOT_BACKEND_BUCKET" desc:"S3 bucket holding Terraform state"`
	LockTable      string `json:"lock_table" env:"STACKPILOT_BACKEND_LOCK_TABLE" desc:"DynamoDB table for Terraform state locking"`
	StateKey       string `json:"state_key" env:"STACKPILOT_BACKEND_STATE_KEY" default:"terraform.tfstate" desc:"S3 key of the state object"`
	BucketAddress  string `json:"bucket_address" env:"STACKPILOT_BACKEND_BUCKET_ADDRESS" desc:"Terraform resource address of the state bucket"`
	TableAddress   string `json:"table_address" env:"STACKPILOT_BACKEND_TABLE_ADDRESS" desc:"Terraform resource address of the lock table"`
	RunLockEnabled bool   `json:"run_lock_enabled" env:"STACKPILOT_RUN_LOCK_ENABLED" default:"true" desc:"Guard runs with a DynamoDB run lock"`
	RunLockTable   string `json:"run_lock_table" env:"STACKPILOT_RUN_LOCK_TABLE" default:"stackpilot-run-locks" desc:"DynamoDB table for the run lock"`
	RunLockTTL     int    `json:"run_lock_ttl_seconds" env:"STACKPILOT_RUN_LOCK_TTL_SECONDS" default:"900" desc:"Run lock TTL in seconds"`
}

// TerraformConfig controls how the terraform binary is invoked.
type TerraformConfig struct {
	BinPath    string            `json:"bin_path" env:"STACKPILOT_TERRAFORM_BIN" default:"terraform" desc:"Path to the terraform binary"`
	WorkDir    string            `json:"work_dir" env:"STACKPILOT_TERRAFORM_DIR" default:"." desc:"Directory containing the Terraform configuration"`
	Vars       map[string]string `json:"vars,omitempty" desc:"Extra -var values passed to apply and destroy"`
	TimeoutSec int               `json:"timeout_seconds" env:"STACKPILOT_TERRAFORM_TIMEOUT_SECONDS" default:"3600" desc:"Per-invocation timeout"`
}

// PipelineConfig holds the opaque build/deploy stage commands and the
// destructive-run confirmation input.
type PipelineConfig struct {
	BuildCommand  string `json:"build_command,omitempty" env:"STACKPILOT_BUILD_COMMAND" desc:"Shell command for the build stage"`
	DeployCommand string `json:"deploy_command,omitempty" env:"STACKPILOT_DEPLOY_COMMAND" desc:"Shell command for the deploy stage"`
	ConfirmWord   string `json:"confirm_word" env:"STACKPILOT_CONFIRM_WORD" default:"destroy" desc:"Literal input required to run destructive stages"`
}

// NotifyConfig configures the end-of-run report notifier.
type NotifyConfig struct {
	Enabled    bool     `json:"enabled" env:"STACKPILOT_NOTIFY_ENABLED" default:"false" desc:"Send the pipeline report by email"`
	Sender     string   `json:"sender,omitempty" env:"STACKPILOT_NOTIFY_SENDER" desc:"SES-verified sender address"`
	Recipients []string `json:"recipients,omitempty" env:"STACKPILOT_NOTIFY_RECIPIENTS" desc:"Comma-separated recipient addresses"`
	Region     string   `json:"region,omitempty" env:"STACKPILOT_NOTIFY_REGION" desc:"SES region (defaults to aws.region)"`
}

// RunConfig carries the run metadata included in the notification payload.
type RunConfig struct {
	Workflow   string `json:"workflow" env:"STACKPILOT_RUN_WORKFLOW" default:"stackpilot" desc:"Workflow name"`
	Actor      string `json:"actor,omitempty" env:"STACKPILOT_RUN_ACTOR" desc:"User who triggered the run"`
	Repository string `json:"repository,omitempty" env:"STACKPILOT_RUN_REPOSITORY" desc:"Repository the run belongs to"`
	Reference  string `json:"reference,omitempty" env:"STACKPILOT_RUN_REFERENCE" desc:"Run reference (commit, tag, run URL)"`
}

// New creates a configuration populated with defaults.
func New() *Config {
	return &Config{
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Backend: BackendConfig{
			StateKey:       "terraform.tfstate",
			BucketAddress:  "aws_s3_bucket.terraform_state[0]",
			TableAddress:   "aws_dynamodb_table.terraform_locks[0]",
			RunLockEnabled: true,
			RunLockTable:   "stackpilot-run-locks",
			RunLockTTL:     900,
		},
		Terraform: TerraformConfig{
			BinPath:    "terraform",
			WorkDir:    ".",
			TimeoutSec: 3600,
		},
		Pipeline: PipelineConfig{
			ConfirmWord: "destroy",
		},
		Run: RunConfig{
			Workflow: "stackpilot",
		},
	}
}

// LoadFromEnv overlays STACKPILOT_* environment variables onto the config.
//
//nolint:gocognit,gocyclo // env loading is a long flat switch by nature
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("STACKPILOT_AWS_REGION"); v != "" {
		c.AWS.Region = v
	}
	if v := os.Getenv("STACKPILOT_AWS_ENDPOINT"); v != "" {
		c.AWS.Endpoint = v
	}

	if v := os.Getenv("STACKPILOT_BACKEND_BUCKET"); v != "" {
		c.Backend.Bucket = v
	}
	if v := os.Getenv("STACKPILOT_BACKEND_LOCK_TABLE"); v != "" {
		c.Backend.LockTable = v
	}
	if v := os.Getenv("STACKPILOT_BACKEND_STATE_KEY"); v != "" {
		c.Backend.StateKey = v
	}
	if v := os.Getenv("STACKPILOT_BACKEND_BUCKET_ADDRESS"); v != "" {
		c.Backend.BucketAddress = v
	}
	if v := os.Getenv("STACKPILOT_BACKEND_TABLE_ADDRESS"); v != "" {
		c.Backend.TableAddress = v
	}
	if v := os.Getenv("STACKPILOT_RUN_LOCK_ENABLED"); v != "" {
		b, err := parseBool("STACKPILOT_RUN_LOCK_ENABLED", v)
		if err != nil {
			return err
		}
		c.Backend.RunLockEnabled = b
	}
	if v := os.Getenv("STACKPILOT_RUN_LOCK_TABLE"); v != "" {
		c.Backend.RunLockTable = v
	}
	if v := os.Getenv("STACKPILOT_RUN_LOCK_TTL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid STACKPILOT_RUN_LOCK_TTL_SECONDS value: %s", v)
		}
		c.Backend.RunLockTTL = n
	}

	if v := os.Getenv("STACKPILOT_TERRAFORM_BIN"); v != "" {
		c.Terraform.BinPath = v
	}
	if v := os.Getenv("STACKPILOT_TERRAFORM_DIR"); v != "" {
		c.Terraform.WorkDir = v
	}
	if v := os.Getenv("STACKPILOT_TERRAFORM_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid STACKPILOT_TERRAFORM_TIMEOUT_SECONDS value: %s", v)
		}
		c.Terraform.TimeoutSec = n
	}

	if v := os.Getenv("STACKPILOT_BUILD_COMMAND"); v != "" {
		c.Pipeline.BuildCommand = v
	}
	if v := os.Getenv("STACKPILOT_DEPLOY_COMMAND"); v != "" {
		c.Pipeline.DeployCommand = v
	}
	if v := os.Getenv("STACKPILOT_CONFIRM_WORD"); v != "" {
		c.Pipeline.ConfirmWord = v
	}

	if v := os.Getenv("STACKPILOT_NOTIFY_ENABLED"); v != "" {
		b, err := parseBool("STACKPILOT_NOTIFY_ENABLED", v)
		if err != nil {
			return err
		}
		c.Notify.Enabled = b
	}
	if v := os.Getenv("STACKPILOT_NOTIFY_SENDER"); v != "" {
		c.Notify.Sender = v
	}
	if v := os.Getenv("STACKPILOT_NOTIFY_RECIPIENTS"); v != "" {
		parts := strings.Split(v, ",")
		recipients := make([]string, 0, len(parts))
		for _, p := range parts {
			if addr := strings.TrimSpace(p); addr != "" {
				recipients = append(recipients, addr)
			}
		}
		c.Notify.Recipients = recipients
	}
	if v := os.Getenv("STACKPILOT_NOTIFY_REGION"); v != "" {
		c.Notify.Region = v
	}

	if v := os.Getenv("STACKPILOT_RUN_WORKFLOW"); v != "" {
		c.Run.Workflow = v
	}
	if v := os.Getenv("STACKPILOT_RUN_ACTOR"); v != "" {
		c.Run.Actor = v
	}
	if v := os.Getenv("STACKPILOT_RUN_REPOSITORY"); v != "" {
		c.Run.Repository = v
	}
	if v := os.Getenv("STACKPILOT_RUN_REFERENCE"); v != "" {
		c.Run.Reference = v
	}

	return nil
}

// Validate checks that everything a run needs is present.
func (c *Config) Validate() error {
	if c.AWS.Region == "" {
		return fmt.Errorf("AWS region is required")
	}
	if c.Backend.Bucket == "" {
		return fmt.Errorf("backend bucket name is required")
	}
	if c.Backend.LockTable == "" {
		return fmt.Errorf("backend lock table name is required")
	}
	if c.Backend.StateKey == "" {
		return fmt.Errorf("backend state key is required")
	}
	if c.Backend.RunLockEnabled && c.Backend.RunLockTable == "" {
		return fmt.Errorf("run lock table name is required when the run lock is enabled")
	}
	if c.Terraform.BinPath == "" {
		return fmt.Errorf("terraform binary path is required")
	}
	if c.Pipeline.ConfirmWord == "" {
		return fmt.Errorf("confirmation word must not be empty")
	}
	if c.Notify.Enabled {
		if c.Notify.Sender == "" {
			return fmt.Errorf("notify sender is required when notifications are enabled")
		}
		if len(c.Notify.Recipients) == 0 {
			return fmt.Errorf("at least one notify recipient is required when notifications are enabled")
		}
	}
	return nil
}

// NotifyRegion returns the SES region, falling back to the main AWS region.
func (c *Config) NotifyRegion() string {
	if c.Notify.Region != "" {
		return c.Notify.Region
	}
	return c.AWS.Region
}

// JSON renders the configuration for `stackpilot config show`.
func (c *Config) JSON() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

func parseBool(name, value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s value: %s", name, value)
	}
}
