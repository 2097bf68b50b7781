package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/internal/verification/rules"
)

type validateOutput struct {
	DocumentType     domain.DocumentType      `json:"document_type"`
	Validation       domain.ValidationReport  `json:"validation"`
	BillVerification *domain.BillVerification `json:"bill_verification,omitempty"`
}

func newValidateCmd() *cobra.Command {
	var docType string

	cmd := &cobra.Command{
		Use:   "validate key=value...",
		Short: "Validate extracted fields against the rules for a document type",
		Long: `Validate fields given as key=value pairs. Values starting with [ or { are
decoded as JSON, which is how bill line items are passed.

Examples:
  docverify validate --type aadhaar name="Asha Rao" aadhaar_number="2345 6789 0124" dob=01/02/1990
  docverify validate --type bill total_amount=50 items='[{"name":"Tea","amount":20}]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParseDocumentType(docType)
			if err != nil {
				return err
			}
			fields, err := parseFields(args)
			if err != nil {
				return err
			}

			out := validateOutput{
				DocumentType: t,
				Validation:   rules.NewEngine().Validate(fields, t),
			}
			if t == domain.DocumentTypeBill {
				out.BillVerification = rules.VerifyBillTotal(fields)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVarP(&docType, "type", "t", "", "Document type (see 'docverify types')")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

// parseFields keeps argument order so output matches the input
func parseFields(args []string) (*domain.FieldMap, error) {
	fields := domain.NewFieldMap()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: expected key=value", arg)
		}
		if strings.HasPrefix(value, "[") || strings.HasPrefix(value, "{") {
			var decoded any
			if err := json.Unmarshal([]byte(value), &decoded); err != nil {
				return nil, fmt.Errorf("invalid JSON for field %s: %w", key, err)
			}
			fields.Set(key, decoded)
			continue
		}
		fields.Set(key, value)
	}
	return fields, nil
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List supported document types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine := rules.NewEngine()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tNAME\tPHOTO\tREQUIRED FIELDS")
			for _, t := range domain.DocumentTypes() {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", t, t.DisplayName(), t.HasPhoto(), strings.Join(engine.RequiredFields(t), ", "))
			}
			return w.Flush()
		},
	}
}
