// Copyright 2024 The Lattice Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lattice

import (
	"gopkg.in/src-d/go-errors.v1"

	"github.com/lattice-sql/lattice/field"
	"github.com/lattice-sql/lattice/planner"
	"github.com/lattice-sql/lattice/report"
	"github.com/lattice-sql/lattice/warehouse"
)

// The error kinds below re-export the `errors.NewKind` sentinels of the
// field, planner, warehouse and report packages listed here, so a caller
// driving a Warehouse/Report through this package's facade can match
// against them with each kind's Is method, without reaching into each
// internal package directly (spec.md §7). Kinds of the other packages
// (schema, dsquery, combined) and warehouse.ErrStoreClosed are not
// re-exported.
var (
	ErrUnknownField          = field.ErrUnknownField
	ErrIncompatibleShadow    = field.ErrIncompatibleShadow
	ErrFormulaCycle          = field.ErrFormulaCycle
	ErrFormulaDepthExceeded  = field.ErrFormulaDepthExceeded
	ErrFormulaUnresolvedLeaf = field.ErrFormulaUnresolvedLeaf
	ErrFormulaDimensionRef   = field.ErrFormulaDimensionRef

	ErrUnresolvableGrain = planner.ErrUnsupportedGrain

	ErrInvalidWarehouseConfig = warehouse.ErrInvalidConfig

	ErrReportKilled           = report.ErrReportKilled
	ErrFailedExecution        = report.ErrFailedExecution
	ErrSubreportDepthExceeded = report.ErrSubreportDepthExceeded
)

// NewKind is re-exported so callers building their own Warehouse
// extensions can raise errors in the same style as the rest of lattice.
var NewKind = errors.NewKind
