package main

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change campaign settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		settings, err := st.GetSettings(ctx)
		if err != nil {
			return err
		}

		// Secrets are masked; use the API to read them back if needed.
		masked := *settings
		masked.SerpAPIKey = mask(masked.SerpAPIKey)
		masked.GroqAPIKey = mask(masked.GroqAPIKey)
		masked.SMTPPassword = mask(masked.SMTPPassword)
		masked.TelegramBotToken = mask(masked.TelegramBotToken)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(masked)
	},
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <field=value>...",
	Short: "Update settings fields",
	Long: `Update one or more settings fields, e.g.:

  outreach-engine settings set smtp_host=smtp.example.com smtp_port=465 smtp_encryption=SSL`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		settings, err := st.GetSettings(ctx)
		if err != nil {
			return err
		}

		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return eris.Errorf("expected field=value, got %q", arg)
			}
			if err := applySetting(settings, key, value); err != nil {
				return err
			}
		}

		if err := st.UpdateSettings(ctx, settings); err != nil {
			return err
		}
		zap.L().Info("settings updated", zap.Int("fields", len(args)))
		return nil
	},
}

func applySetting(s *model.Settings, key, value string) error {
	switch key {
	case "serp_api_key":
		s.SerpAPIKey = value
	case "groq_api_key":
		s.GroqAPIKey = value
	case "smtp_host":
		s.SMTPHost = value
	case "smtp_port":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 65535 {
			return eris.Errorf("invalid smtp_port %q", value)
		}
		s.SMTPPort = n
	case "smtp_username":
		s.SMTPUsername = value
	case "smtp_password":
		s.SMTPPassword = value
	case "smtp_encryption":
		switch value {
		case "SSL", "TLS", "NONE":
			s.SMTPEncryption = value
		default:
			return eris.Errorf("smtp_encryption must be SSL, TLS, or NONE, got %q", value)
		}
	case "from_name":
		s.FromName = value
	case "from_email":
		s.FromEmail = value
	case "telegram_bot_token":
		s.TelegramBotToken = value
	case "telegram_chat_id":
		s.TelegramChatID = value
	case "daily_email_limit":
		return applyIntSetting(&s.DailyEmailLimit, key, value)
	case "daily_serp_limit":
		return applyIntSetting(&s.DailySerpLimit, key, value)
	case "inventory_threshold":
		return applyIntSetting(&s.InventoryThreshold, key, value)
	default:
		return eris.Errorf("unknown settings field %q", key)
	}
	return nil
}

func applyIntSetting(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return eris.Errorf("invalid %s %q", key, value)
	}
	*dst = n
	return nil
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
