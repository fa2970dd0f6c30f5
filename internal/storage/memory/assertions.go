package memory

import (
	"github.com/tinoosan/feeledger/internal/roster"
	"github.com/tinoosan/feeledger/internal/service/chart"
	"github.com/tinoosan/feeledger/internal/service/fee"
	"github.com/tinoosan/feeledger/internal/service/report"
	"github.com/tinoosan/feeledger/internal/service/voucher"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
// It deliberately does not implement the atomic writers.
var (
	_ chart.Repo                = (*Store)(nil)
	_ chart.Writer              = (*Store)(nil)
	_ voucher.Repo              = (*Store)(nil)
	_ voucher.Writer            = (*Store)(nil)
	_ fee.Repo                  = (*Store)(nil)
	_ fee.Writer                = (*Store)(nil)
	_ report.Repo               = (*Store)(nil)
	_ roster.StudentDirectory   = (*Store)(nil)
	_ roster.FeeCategoryCatalog = (*Store)(nil)
)
