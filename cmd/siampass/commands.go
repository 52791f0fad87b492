package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/siampass/internal/chat"
	"github.com/kalambet/siampass/internal/config"
	"github.com/kalambet/siampass/internal/loyalty"
	"github.com/kalambet/siampass/internal/nav"
	"github.com/kalambet/siampass/internal/recommend"
)

// --- view ---

var viewCmd = &cobra.Command{
	Use:   "view <home|chat|travel_guide|profile>",
	Short: "Switch the active view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, ok := nav.ParseView(args[0])
		if !ok {
			return fmt.Errorf("unknown view %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return selectView(cmd, client, v)
	},
}

func selectView(cmd *cobra.Command, client *apiClient, v nav.View) error {
	resp, err := client.put(cmd.Context(), "/view", map[string]string{"view": string(v)})
	if err != nil {
		return err
	}
	var st nav.State
	if err := decodeJSON(resp, &st); err != nil {
		return err
	}
	printStep("View: %s", st.View)
	return nil
}

// --- ar ---

var arCmd = &cobra.Command{
	Use:   "ar",
	Short: "Open or close the AR overlay",
}

var arOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Show the AR overlay and start tracking",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/overlay/ar", nil)
		if err != nil {
			return err
		}
		var st nav.State
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}
		tracking := "unavailable"
		if st.Tracking != nil {
			tracking = string(*st.Tracking)
		}
		printSuccess("AR overlay open (tracking: %s)", tracking)
		return nil
	},
}

var arCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Hide the AR overlay and release the camera",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/overlay/ar")
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("AR overlay closed")
		return nil
	},
}

func init() {
	arCmd.AddCommand(arOpenCmd)
	arCmd.AddCommand(arCloseCmd)
}

// --- guide ---

var guideCmd = &cobra.Command{
	Use:   "guide <province>",
	Short: "Show recommendations for a province",
	Long: `Show recommended attractions or restaurants for a Thai province.

Examples:
  siampass guide Bangkok
  siampass guide "Chiang Mai" --tab restaurants
  siampass guide Phuket --category Beach`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		province := strings.Join(args, " ")
		tabName, _ := cmd.Flags().GetString("tab")
		category, _ := cmd.Flags().GetString("category")

		var tab recommend.Tab
		if tabName != "" {
			t, ok := recommend.ParseTab(tabName)
			if !ok {
				return fmt.Errorf("unknown tab %q (want attractions or restaurants)", tabName)
			}
			tab = t
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if err := selectView(cmd, client, nav.ViewTravelGuide); err != nil {
			return err
		}

		printStep("Asking the guide about %s...", province)
		resp, err := client.post(ctx, "/guide/province", map[string]string{"province": province})
		if err != nil {
			return err
		}
		var snap recommend.Snapshot
		if err := decodeJSON(resp, &snap); err != nil {
			return err
		}

		if tab != "" {
			if resp, err = client.put(ctx, "/guide/tab", map[string]string{"tab": string(tab)}); err != nil {
				return err
			}
			if err := decodeJSON(resp, &snap); err != nil {
				return err
			}
		}
		if category != "" {
			if resp, err = client.put(ctx, "/guide/filter", map[string]string{"category": category}); err != nil {
				return err
			}
			if err := decodeJSON(resp, &snap); err != nil {
				return err
			}
		}

		return renderSnapshot(snap)
	},
}

func init() {
	guideCmd.Flags().String("tab", "", "attractions or restaurants")
	guideCmd.Flags().String("category", "", "only show this category")
}

func renderSnapshot(snap recommend.Snapshot) error {
	switch snap.Status {
	case recommend.StatusFailed:
		return fmt.Errorf("the guide could not load %s, try again", snap.Province)
	case recommend.StatusPending:
		printWarning("%s is still loading", snap.Province)
		return nil
	}

	printHeading("%s: %s", snap.Province, snap.Tab)
	if len(snap.Categories) > 1 {
		fmt.Fprintf(stdout, "  %s %s\n", colorize(colorDim, "categories:"), strings.Join(snap.Categories, ", "))
	}
	if len(snap.Items) == 0 {
		fmt.Fprintln(stdout, "  No recommendations.")
		return nil
	}
	for _, it := range snap.Items {
		title := it.Name + " " + colorize(colorCyan, "["+it.Category+"]")
		if it.PriceRange != "" {
			title += " " + it.PriceRange
		}
		printEntry("•", title, it.Description)
	}
	return nil
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Chat with the guide",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			return fmt.Errorf("message is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := selectView(cmd, client, nav.ViewChat); err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/chat/messages", map[string]string{"text": text})
		if err != nil {
			return err
		}
		var result struct {
			Messages []chat.Message `json:"messages"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		replies := repliesAfterLastUser(result.Messages)
		if len(replies) == 0 {
			printWarning("The guide did not answer. Check the server log and try again.")
			return nil
		}
		for _, m := range replies {
			fmt.Fprintln(stdout, m.Text)
		}
		return nil
	},
}

// repliesAfterLastUser returns the assistant messages that follow the most
// recent user message.
func repliesAfterLastUser(msgs []chat.Message) []chat.Message {
	last := -1
	for i, m := range msgs {
		if m.Role == chat.RoleUser {
			last = i
		}
	}
	var out []chat.Message
	for _, m := range msgs[last+1:] {
		if m.Role == chat.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the loyalty profile or redeem rewards",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show points, stamps and rewards",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}
		var p loyalty.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}
		renderProfile(p)
		return nil
	},
}

var profileRedeemCmd = &cobra.Command{
	Use:   "redeem <reward-id>",
	Short: "Spend points on a reward",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/profile/redeem", map[string]string{"rewardId": args[0]})
		if err != nil {
			return err
		}
		var red loyalty.Redemption
		if err := decodeJSON(resp, &red); err != nil {
			return err
		}
		printSuccess("Redeemed %s for %d points", red.RewardID, red.Cost)
		return nil
	},
}

func init() {
	profileShowCmd.Flags().Bool("json", false, "print the raw profile JSON")
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileRedeemCmd)
}

func renderProfile(p loyalty.Profile) {
	m := p.Member
	printHeading("%s (%s)", m.Name, m.Level)
	if m.NextLevel != "" {
		fmt.Fprintf(stdout, "  %d / %d points, %.0f%% to %s\n", m.Points, m.NextLevelPoints, p.Progress, m.NextLevel)
	} else {
		fmt.Fprintf(stdout, "  %d points\n", m.Points)
	}

	fmt.Fprintln(stdout)
	printHeading("Stamps")
	for _, st := range p.Stamps {
		marker := colorize(colorDim, "○")
		detail := fmt.Sprintf("+%d points", st.Points)
		if st.Collected {
			marker = colorize(colorGreen, "●")
			if st.CollectedAt != nil {
				detail = "collected " + st.CollectedAt.Format("2006-01-02")
			}
		}
		printEntry(marker, st.Name, detail)
	}

	fmt.Fprintln(stdout)
	printHeading("Rewards")
	for _, r := range p.Rewards {
		marker := colorize(colorDim, "·")
		if r.Redeemable {
			marker = colorize(colorGreen, "✓")
		}
		printEntry(marker, fmt.Sprintf("%s (%d pts)", r.Name, r.Cost), r.Type+", id "+r.ID)
	}
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			val := k.Value
			if k.Secret {
				val = colorize(colorDim, val+" via "+k.EnvVar)
			}
			fmt.Fprintf(stdout, "  %s = %s\n", colorize(colorBold, k.Key), val)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Restore a configuration key to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
