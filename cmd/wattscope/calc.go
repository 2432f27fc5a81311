package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bher20/wattscope/internal/appliances"
	"github.com/bher20/wattscope/internal/billing"
	"github.com/bher20/wattscope/internal/tariff"
)

var (
	calcAppliance string
	calcPower     float64
	calcHours     int
	calcMinutes   int
	calcCategory  string
	calcJSON      bool
)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Estimate the bill for one appliance run",
	Example: `  wattscope calc --appliance ac --hours 2
  wattscope calc --power 2000 --hours 24 --category commercial --json`,
	RunE: runCalc,
}

var (
	cumulativeUnits    float64
	cumulativeCategory string
	cumulativeJSON     bool
)

var cumulativeCmd = &cobra.Command{
	Use:   "cumulative",
	Short: "Price a total monthly consumption",
	RunE:  runCumulative,
}

var tariffsCmd = &cobra.Command{
	Use:   "tariffs",
	Short: "Print the slab tables in use",
	RunE:  runTariffs,
}

var appliancesCmd = &cobra.Command{
	Use:   "appliances",
	Short: "List the appliance catalogue",
	RunE:  runAppliances,
}

func init() {
	calcCmd.Flags().StringVarP(&calcAppliance, "appliance", "a", "", "appliance id from the catalogue")
	calcCmd.Flags().Float64VarP(&calcPower, "power", "p", 0, "power in watts for a custom appliance")
	calcCmd.Flags().IntVar(&calcHours, "hours", 0, "hours of use")
	calcCmd.Flags().IntVar(&calcMinutes, "minutes", 0, "minutes of use")
	calcCmd.Flags().StringVarP(&calcCategory, "category", "c", string(tariff.CategoryResidential), "tariff category (LT-I, LT-II, residential, commercial)")
	calcCmd.Flags().BoolVar(&calcJSON, "json", false, "print JSON")

	cumulativeCmd.Flags().Float64VarP(&cumulativeUnits, "units", "u", 0, "total kWh")
	cumulativeCmd.Flags().StringVarP(&cumulativeCategory, "category", "c", string(tariff.CategoryResidential), "tariff category")
	cumulativeCmd.Flags().BoolVar(&cumulativeJSON, "json", false, "print JSON")
	_ = cumulativeCmd.MarkFlagRequired("units")

	rootCmd.AddCommand(calcCmd, cumulativeCmd, tariffsCmd, appliancesCmd)
}

// newCalculator builds a storage-less billing service from the config.
func newCalculator() (*billing.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	eng, err := loadEngine(cfg)
	if err != nil {
		return nil, err
	}
	return billing.NewService(nil, eng), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func rupees(v float64) string {
	return "Rs " + humanize.CommafWithDigits(v, 2)
}

func runCalc(cmd *cobra.Command, args []string) error {
	category, err := tariff.ParseCategory(calcCategory)
	if err != nil {
		return err
	}
	svc, err := newCalculator()
	if err != nil {
		return err
	}
	est, err := svc.Calculate(cmd.Context(), billing.UsageInput{
		ApplianceID: calcAppliance,
		PowerWatts:  calcPower,
		Hours:       calcHours,
		Minutes:     calcMinutes,
	}, category)
	if err != nil {
		return err
	}
	if calcJSON {
		return printJSON(est)
	}

	fmt.Printf("%s, %s W for %dh %02dm\n", est.ApplianceName, humanize.Ftoa(est.PowerWatts), est.Hours, est.Minutes)
	fmt.Println("----------------------------------------")
	fmt.Printf("%-16s %s (%s)\n", "Category", est.Category, est.Category.Description())
	fmt.Printf("%-16s %.3f kWh\n", "Units", est.Units)
	fmt.Printf("%-16s %s (%s/kWh)\n", "Slab", est.SlabLabel, rupees(est.RatePerUnit))
	fmt.Printf("%-16s %s\n", "Energy cost", rupees(est.EnergyCost))
	fmt.Printf("%-16s %s\n", "Fixed charge", rupees(est.FixedCharge))
	fmt.Println("----------------------------------------")
	fmt.Printf("%-16s %s\n", "Total", rupees(est.TotalCost))
	return nil
}

func runCumulative(cmd *cobra.Command, args []string) error {
	category, err := tariff.ParseCategory(cumulativeCategory)
	if err != nil {
		return err
	}
	svc, err := newCalculator()
	if err != nil {
		return err
	}
	bill, err := svc.Cumulative(cumulativeUnits, category)
	if err != nil {
		return err
	}
	if cumulativeJSON {
		return printJSON(bill)
	}

	fmt.Printf("%-16s %.3f kWh\n", "Total units", bill.TotalUnits)
	fmt.Printf("%-16s %s (%s/kWh)\n", "Slab", bill.SlabLabel, rupees(bill.RatePerUnit))
	fmt.Printf("%-16s %s\n", "Energy cost", rupees(bill.EnergyCost))
	fmt.Printf("%-16s %s\n", "Fixed charge", rupees(bill.FixedCharge))
	fmt.Printf("%-16s %s\n", "Total", rupees(bill.TotalCost))
	return nil
}

func runTariffs(cmd *cobra.Command, args []string) error {
	svc, err := newCalculator()
	if err != nil {
		return err
	}
	tables := svc.Engine().Tables()
	for _, c := range tariff.Categories() {
		fmt.Printf("\n%s %s\n", c, c.Description())
		fmt.Println("----------------------------------------")
		fmt.Printf("%-14s %12s %14s\n", "Slab", "Rs/kWh", "Fixed Rs")
		for _, s := range tables.Table(c).Slabs {
			fmt.Printf("%-14s %12.2f %14.2f\n", s.Label(), s.Rate, s.FixedCharge)
		}
	}
	return nil
}

func runAppliances(cmd *cobra.Command, args []string) error {
	fmt.Printf("%-12s %-20s %10s\n", "ID", "Name", "Watts")
	fmt.Println("----------------------------------------------")
	for _, a := range appliances.All() {
		fmt.Printf("%-12s %-20s %10s\n", a.ID, a.Name, humanize.Ftoa(a.PowerWatts))
	}
	return nil
}
