package compute

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/models"
)

func testRules() Rules {
	return Rules{
		RequiredFields: models.DefaultRequiredFields,
		VATRate:        decimal.RequireFromString("0.1"),
		Regions:        []string{"A", "B"},
	}
}

func completeInput() Input {
	return Input{
		Region:          "A",
		Owner:           "kim",
		Company:         "IT Global",
		Client:          "Hanbit Mart",
		SiteAddress:     "12 Jongno-gu, Seoul",
		WorkDescription: "Install 4 ceiling cassette units",
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestValidateAndCompute_Derivation(t *testing.T) {
	t.Run("vat_and_outstanding", func(t *testing.T) {
		in := completeInput()
		in.TotalAmount = "1000"
		in.AmountPaid = "400"

		res, err := ValidateAndCompute(in, testRules())
		require.NoError(t, err)
		p := res.Project

		assert.True(t, p.VATAmount.Decimal.Equal(dec("100")), "vat = %s", p.VATAmount.Decimal)
		assert.True(t, p.OutstandingAmount.Decimal.Equal(dec("600")), "outstanding = %s", p.OutstandingAmount.Decimal)
		assert.False(t, p.PaymentAnomaly)
		assert.Empty(t, res.Anomalies)
	})

	t.Run("overpayment_clamps_and_flags", func(t *testing.T) {
		in := completeInput()
		in.TotalAmount = "1000"
		in.AmountPaid = "1200"

		res, err := ValidateAndCompute(in, testRules())
		require.NoError(t, err)

		assert.True(t, res.Project.OutstandingAmount.Decimal.IsZero())
		assert.True(t, res.Project.PaymentAnomaly)
		require.Len(t, res.Anomalies, 1)
		assert.Equal(t, models.FieldAmountPaid, res.Anomalies[0].Field)
	})

	t.Run("margin_rate", func(t *testing.T) {
		in := completeInput()
		in.TotalAmount = "1000"
		in.CostAmount = "700"

		res, err := ValidateAndCompute(in, testRules())
		require.NoError(t, err)

		require.True(t, res.Project.MarginRate.Valid)
		assert.True(t, res.Project.MarginRate.Decimal.Equal(dec("0.3")))
		assert.True(t, res.Project.NetProfit.Decimal.Equal(dec("300")))
	})

	t.Run("zero_cost_is_full_margin", func(t *testing.T) {
		in := completeInput()
		in.TotalAmount = "1000"
		in.CostAmount = "0"

		res, err := ValidateAndCompute(in, testRules())
		require.NoError(t, err)

		require.True(t, res.Project.MarginRate.Valid)
		assert.True(t, res.Project.MarginRate.Decimal.Equal(dec("1")))
	})

	t.Run("zero_total_leaves_margin_undefined", func(t *testing.T) {
		in := completeInput()
		in.TotalAmount = "0"
		in.CostAmount = "100"

		res, err := ValidateAndCompute(in, testRules())
		require.NoError(t, err)

		assert.False(t, res.Project.MarginRate.Valid)
	})

	t.Run("missing_total_leaves_derived_fields_null", func(t *testing.T) {
		res, err := ValidateAndCompute(completeInput(), testRules())
		require.NoError(t, err)

		assert.False(t, res.Project.VATAmount.Valid)
		assert.False(t, res.Project.OutstandingAmount.Valid)
		assert.False(t, res.Project.MarginRate.Valid)
	})

	t.Run("instalments_define_amount_paid", func(t *testing.T) {
		in := completeInput()
		in.TotalAmount = "10,000,000"
		in.DownPayment = "3,000,000"
		in.MiddlePayment = "2,000,000"

		res, err := ValidateAndCompute(in, testRules())
		require.NoError(t, err)

		assert.True(t, res.Project.AmountPaid.Decimal.Equal(dec("5000000")))
		assert.True(t, res.Project.OutstandingAmount.Decimal.Equal(dec("5000000")))
	})

	t.Run("cost_components_define_cost", func(t *testing.T) {
		in := completeInput()
		in.TotalAmount = "1000"
		in.ProductCost = "300"
		in.LaborCost = "200"

		res, err := ValidateAndCompute(in, testRules())
		require.NoError(t, err)

		assert.True(t, res.Project.CostAmount.Decimal.Equal(dec("500")))
		assert.True(t, res.Project.MarginRate.Decimal.Equal(dec("0.5")))
	})

	t.Run("derive_is_idempotent", func(t *testing.T) {
		in := completeInput()
		in.TotalAmount = "1234.56"
		in.AmountPaid = "234.56"
		in.CostAmount = "1000"

		res, err := ValidateAndCompute(in, testRules())
		require.NoError(t, err)
		before := *res.Project

		Derive(res.Project, testRules().VATRate)
		assert.True(t, before.VATAmount.Decimal.Equal(res.Project.VATAmount.Decimal))
		assert.True(t, before.OutstandingAmount.Decimal.Equal(res.Project.OutstandingAmount.Decimal))
		assert.True(t, before.MarginRate.Decimal.Equal(res.Project.MarginRate.Decimal))
	})
}

func TestValidateAndCompute_Status(t *testing.T) {
	t.Run("pending_without_dates", func(t *testing.T) {
		res, err := ValidateAndCompute(completeInput(), testRules())
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, res.Project.Status)
	})

	t.Run("in_progress_inferred_from_start_date", func(t *testing.T) {
		in := completeInput()
		in.StartDate = "2024-03-05"
		res, err := ValidateAndCompute(in, testRules())
		require.NoError(t, err)
		assert.Equal(t, models.StatusInProgress, res.Project.Status)
	})

	t.Run("complete_inferred_from_end_date", func(t *testing.T) {
		in := completeInput()
		in.StartDate = "2024-03-05"
		in.EndDate = "2024-03-20"
		res, err := ValidateAndCompute(in, testRules())
		require.NoError(t, err)
		assert.Equal(t, models.StatusComplete, res.Project.Status)
	})

	t.Run("in_progress_requires_start_date", func(t *testing.T) {
		in := completeInput()
		in.Status = "IN_PROGRESS"
		_, err := ValidateAndCompute(in, testRules())
		requireFields(t, err, models.FieldStartDate)
	})

	t.Run("unknown_status", func(t *testing.T) {
		in := completeInput()
		in.Status = "DONE"
		_, err := ValidateAndCompute(in, testRules())
		requireFields(t, err, "status")
	})
}

func TestValidateAndCompute_Rejections(t *testing.T) {
	t.Run("lists_every_missing_field_in_declared_order", func(t *testing.T) {
		in := completeInput()
		in.Owner = ""
		in.Client = "  "
		in.WorkDescription = ""
		_, err := ValidateAndCompute(in, testRules())
		requireFields(t, err, models.FieldOwner, models.FieldClient, models.FieldWorkDescription)
	})

	t.Run("non_numeric_total", func(t *testing.T) {
		in := completeInput()
		in.TotalAmount = "abc"
		_, err := ValidateAndCompute(in, testRules())
		requireFields(t, err, models.FieldTotalAmount)
	})

	t.Run("negative_total", func(t *testing.T) {
		in := completeInput()
		in.TotalAmount = "-5"
		_, err := ValidateAndCompute(in, testRules())
		requireFields(t, err, models.FieldTotalAmount)
	})

	t.Run("unknown_region", func(t *testing.T) {
		in := completeInput()
		in.Region = "Z"
		_, err := ValidateAndCompute(in, testRules())
		requireFields(t, err, models.FieldRegion)
	})

	t.Run("missing_and_invalid_reported_together", func(t *testing.T) {
		in := completeInput()
		in.Company = ""
		in.TotalAmount = "lots"
		in.StartDate = "yesterday"
		_, err := ValidateAndCompute(in, testRules())
		requireFields(t, err, models.FieldCompany, models.FieldStartDate, models.FieldTotalAmount)
	})

	t.Run("end_before_start", func(t *testing.T) {
		in := completeInput()
		in.StartDate = "2024-03-05"
		in.EndDate = "2024-03-01"
		_, err := ValidateAndCompute(in, testRules())
		requireFields(t, err, models.FieldEndDate)
	})
}

func requireFields(t *testing.T, err error, fields ...string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_FAILED", appErr.Code)

	got := make([]string, 0, len(appErr.Fields))
	for _, f := range appErr.Fields {
		got = append(got, f.Field)
	}
	assert.Equal(t, fields, got)
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"1000":         "1000",
		"1,200,000":    "1200000",
		"1,200,000원":   "1200000",
		"₩ 5,000":      "5000",
		"￦12,345.50":   "12345.5",
		" 42 ":         "42",
		"3000000.0000": "3000000",
	}
	for raw, want := range cases {
		got, err := ParseAmount(raw)
		if assert.NoError(t, err, raw) {
			assert.True(t, got.Equal(dec(want)), "%q parsed as %s", raw, got)
		}
	}

	for _, bad := range []string{"", "abc", "12a", "--1"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseDate(t *testing.T) {
	for _, raw := range []string{"2024-03-05", "2024/03/05", "2024.03.05", "2024. 3. 5", "2024. 3. 5.", "2024-03-05 13:45:00"} {
		got, err := ParseDate(raw)
		if assert.NoError(t, err, raw) {
			assert.Equal(t, "2024-03-05", got.Format(models.DateLayout), raw)
		}
	}

	_, err := ParseDate("March 5th")
	assert.Error(t, err)
}

func TestAmountUnmarshalJSON(t *testing.T) {
	var in Input
	require.NoError(t, json.Unmarshal([]byte(`{"total_amount": 1500000, "amount_paid": "1,000", "cost_amount": null}`), &in))

	assert.Equal(t, Amount("1500000"), in.TotalAmount)
	assert.Equal(t, Amount("1,000"), in.AmountPaid)
	assert.False(t, in.CostAmount.Present())
}

func TestMergeAndFromProject(t *testing.T) {
	in := completeInput()
	in.TotalAmount = "1000"
	in.DownPayment = "300"
	in.CostAmount = "600"
	res, err := ValidateAndCompute(in, testRules())
	require.NoError(t, err)

	base := FromProject(res.Project)
	assert.Equal(t, Amount("300"), base.DownPayment)
	assert.False(t, base.AmountPaid.Present(), "amount paid comes from instalments")
	assert.Equal(t, Amount("600"), base.CostAmount)

	merged := Merge(base, Input{FinalPayment: "700", Owner: "lee"})
	res2, err := ValidateAndCompute(merged, testRules())
	require.NoError(t, err)

	assert.Equal(t, "lee", res2.Project.Owner)
	assert.Equal(t, "IT Global", res2.Project.Company)
	assert.True(t, res2.Project.OutstandingAmount.Decimal.IsZero())
	assert.False(t, res2.Project.PaymentAnomaly)
}

func TestRecompute(t *testing.T) {
	in := completeInput()
	in.TotalAmount = "1000"
	res, err := ValidateAndCompute(in, testRules())
	require.NoError(t, err)
	existing := res.Project
	existing.Code = "A-004"

	t.Run("total_change_rederives", func(t *testing.T) {
		out, err := Recompute(existing, Input{TotalAmount: "2000", AmountPaid: "500"}, testRules())
		require.NoError(t, err)
		assert.Equal(t, "A-004", out.Project.Code)
		assert.True(t, dec("200").Equal(out.Project.VATAmount.Decimal))
		assert.True(t, dec("1500").Equal(out.Project.OutstandingAmount.Decimal))
	})

	t.Run("region_change_rejected", func(t *testing.T) {
		_, err := Recompute(existing, Input{Region: "B"}, testRules())
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		require.Len(t, appErr.Fields, 1)
		assert.Equal(t, models.FieldRegion, appErr.Fields[0].Field)
	})

	t.Run("invalid_patch_rejected", func(t *testing.T) {
		_, err := Recompute(existing, Input{TotalAmount: "-5"}, testRules())
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestLenient(t *testing.T) {
	t.Run("keeps_gaps_and_drops_garbage", func(t *testing.T) {
		in := Input{Owner: "kim", TotalAmount: "1,000", AmountPaid: "n/a", StartDate: "someday", Status: "진행중"}
		p := Lenient("A-001", in, dec("0.1"))

		assert.Equal(t, "A-001", p.Code)
		assert.True(t, p.TotalAmount.Decimal.Equal(dec("1000")))
		assert.False(t, p.AmountPaid.Valid)
		assert.Nil(t, p.StartDate)
		assert.Equal(t, models.StatusPending, p.Status)
		assert.True(t, p.OutstandingAmount.Decimal.Equal(dec("1000")))
		assert.Empty(t, p.FieldValue(models.FieldClient))
	})

	t.Run("negative_total_not_derived", func(t *testing.T) {
		p := Lenient("A-002", Input{TotalAmount: "-50"}, dec("0.1"))
		assert.True(t, p.TotalAmount.Decimal.IsNegative())
		assert.False(t, p.OutstandingAmount.Valid)
	})

	t.Run("explicit_status_kept", func(t *testing.T) {
		p := Lenient("A-003", Input{Status: "in_progress"}, dec("0.1"))
		assert.Equal(t, models.StatusInProgress, p.Status)
	})
}
