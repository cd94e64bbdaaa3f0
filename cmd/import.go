package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/equivet/moverisk/internal/model"
	"github.com/equivet/moverisk/internal/route"
	"github.com/equivet/moverisk/internal/zones"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load movements, zones, and status declarations into the store",
}

var importMovementsCmd = &cobra.Command{
	Use:   "movements <file>",
	Short: "Import movement records from CSV or XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		var recs []model.MovementRecord
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			var err error
			recs, err = route.ReadMovementsXLSX(path)
			if err != nil {
				return err
			}
		default:
			f, err := os.Open(path)
			if err != nil {
				return eris.Wrapf(err, "open %s", path)
			}
			defer f.Close()
			recs, err = route.ReadMovementsCSV(f)
			if err != nil {
				return err
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.SaveMovements(ctx, recs)
		if err != nil {
			return err
		}
		zap.L().Info("movements imported", zap.Int64("count", n), zap.String("file", path))
		fmt.Printf("Imported %d movements from %s\n", n, path)
		return nil
	},
}

var importZonesCmd = &cobra.Command{
	Use:   "zones <shapefile>",
	Short: "Import risk zone polygons from a shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		idField, _ := cmd.Flags().GetString("id-field")
		nameField, _ := cmd.Flags().GetString("name-field")

		zs, err := zones.ReadShapefile(args[0], zones.ShapefileOptions{
			IDField:   idField,
			NameField: nameField,
		})
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.SaveZones(ctx, zs)
		if err != nil {
			return err
		}
		zap.L().Info("zones imported", zap.Int64("count", n), zap.String("file", args[0]))
		fmt.Printf("Imported %d zones from %s\n", n, args[0])
		return nil
	},
}

var importDeclarationsCmd = &cobra.Command{
	Use:   "declarations <file>",
	Short: "Import daily zone status declarations from CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close()

		decls, err := zones.ReadDeclarations(f)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.SaveDeclarations(ctx, decls)
		if err != nil {
			return err
		}
		zap.L().Info("declarations imported", zap.Int64("count", n), zap.String("file", args[0]))
		fmt.Printf("Imported %d declarations from %s\n", n, args[0])
		return nil
	},
}

func init() {
	importZonesCmd.Flags().String("id-field", "id", "attribute field holding the zone identifier")
	importZonesCmd.Flags().String("name-field", "name", "attribute field holding the zone name")

	importCmd.AddCommand(importMovementsCmd)
	importCmd.AddCommand(importZonesCmd)
	importCmd.AddCommand(importDeclarationsCmd)
	rootCmd.AddCommand(importCmd)
}
