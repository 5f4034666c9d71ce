package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"petagenda/internal/config"
	"petagenda/internal/service"
	"petagenda/internal/slots"
	"petagenda/shared/access"
	"petagenda/shared/audit"
)

var syncRosterCmd = &cobra.Command{
	Use:   "sync-roster [roster.yaml]",
	Short: "Load shops, staff, services and pets from a roster file into the database",
	Long: `Upserts every shop, user, service and pet listed in the roster and
deactivates users and services that are no longer listed.

Example:
  petagenda sync-roster configs/roster.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSyncRoster,
}

var (
	exportMonth string

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write a month of bookings to an .xlsx workbook",
		Long: `Writes one sheet per shop with every booking that starts in the month.

Example:
  petagenda export --month 2024-01`,
		RunE: runExport,
	}
)

var (
	slotsShop    int64
	slotsService int64
	slotsDate    string

	slotsCmd = &cobra.Command{
		Use:   "slots",
		Short: "Print available start times and free staff for a service on a day",
		Long: `Example:
  petagenda slots --shop 1 --service 3 --date 2024-01-01`,
		RunE: runSlots,
	}
)

func init() {
	exportCmd.Flags().StringVar(&exportMonth, "month", "", "month to export as YYYY-MM (default: previous month)")

	slotsCmd.Flags().Int64Var(&slotsShop, "shop", 0, "shop id")
	slotsCmd.Flags().Int64Var(&slotsService, "service", 0, "service id")
	slotsCmd.Flags().StringVar(&slotsDate, "date", "", "day as YYYY-MM-DD")
	_ = slotsCmd.MarkFlagRequired("shop")
	_ = slotsCmd.MarkFlagRequired("service")
	_ = slotsCmd.MarkFlagRequired("date")

	rootCmd.AddCommand(syncRosterCmd, exportCmd, slotsCmd)
}

func runSyncRoster(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Roster.Path
	if len(args) == 1 {
		path = args[0]
	}

	rc, err := config.LoadRoster(path)
	if err != nil {
		return err
	}
	db, _, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SyncRoster(cmd.Context(), rc); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "synced %s\n", rc)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, loc, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	month := audit.PreviousMonth(time.Now().In(loc))
	if exportMonth != "" {
		month, err = time.ParseInLocation("2006-01", exportMonth, loc)
		if err != nil {
			return fmt.Errorf("invalid --month %q; expected YYYY-MM", exportMonth)
		}
	}

	exporter := audit.NewService(&audit.Config{Dir: cfg.Audit.ExportPath}, db, nil, loc, logger)
	path, err := exporter.ExportMonth(cmd.Context(), month)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runSlots(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slotCfg, err := cfg.SlotConfig()
	if err != nil {
		return err
	}
	db, loc, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	day, err := config.ParseDate(slotsDate, loc)
	if err != nil {
		return err
	}

	svc := service.NewBookingService(db, slots.NewGenerator(slotCfg), access.NewService(logger), loc, logger)
	details, err := svc.SlotDetails(cmd.Context(), slotsShop, slotsService, day)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(details) == 0 {
		fmt.Fprintln(out, "no available slots")
		return nil
	}
	for _, s := range slots.ToSlotInfo(details) {
		fmt.Fprintf(out, "%s-%s staff %v\n", s.Start, s.End, s.StaffIDs)
	}
	return nil
}
