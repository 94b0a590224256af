//nolint:whitespace // can't make both editor and linter happy
package scoringsystem

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/codes"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/discard"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/util"
	"github.com/mpapenbr/regatta-scoring-go/pkg/repository"
)

var (
	ErrNestedParent       = errors.New("parent scoring system must not have a parent")
	ErrUnknownMissingCode = errors.New("missing result code is not defined")
)

const selectSystem = `
select id, name, discard_pattern, participation_percent, parent_id, direction, missing_result_code
from scoring_system where id=$1
`

const selectCodes = `
select name, description, formula, code_offset, referenced_code, discardable,
	came_to_start, started, finished, preserve_result, adjusts_other_finishers
from score_code where scoring_system_id=$1 order by name
`

// Validate checks the discard pattern and the merged code library of system.
// The parent is loaded from the database if system has one.
func Validate(ctx context.Context, conn repository.Querier, system *model.ScoringSystem) error {
	if _, err := discard.ParsePattern(system.DiscardPattern); err != nil {
		return err
	}
	var parent *model.ScoringSystem
	if system.ParentID != nil {
		var err error
		if parent, err = LoadByID(ctx, conn, *system.ParentID); err != nil {
			return fmt.Errorf("parent %d: %w", *system.ParentID, err)
		}
		if parent.ParentID != nil {
			return ErrNestedParent
		}
	}
	lib := codes.ForSystem(system, parent)
	if err := lib.Validate(); err != nil {
		return err
	}
	if system.MissingResultCode != "" && !lib.Has(system.MissingResultCode) {
		return fmt.Errorf("%w: %s (%w)", ErrUnknownMissingCode, system.MissingResultCode, util.ErrUnknownCode)
	}
	return nil
}

// Create stores a new scoring system including its codes and returns its id.
// Callers should pass a transaction.
func Create(ctx context.Context, conn repository.Querier, system *model.ScoringSystem) (int, error) {
	if err := Validate(ctx, conn, system); err != nil {
		return 0, err
	}
	row := conn.QueryRow(ctx, `
insert into scoring_system (name, discard_pattern, participation_percent, parent_id, direction, missing_result_code)
values ($1,$2,$3,$4,$5,$6) returning id
	`,
		system.Name, system.DiscardPattern, system.ParticipationPercent, system.ParentID,
		string(system.EffectiveDirection()), system.MissingResultCode,
	)
	id := 0
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	for i := range system.Codes {
		if err := upsertCode(ctx, conn, id, &system.Codes[i]); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func LoadByID(ctx context.Context, conn repository.Querier, id int) (*model.ScoringSystem, error) {
	ret := &model.ScoringSystem{}
	var direction string
	err := conn.QueryRow(ctx, selectSystem, id).Scan(
		&ret.ID, &ret.Name, &ret.DiscardPattern, &ret.ParticipationPercent,
		&ret.ParentID, &direction, &ret.MissingResultCode,
	)
	if err != nil {
		return nil, repository.MapNoRows(err)
	}
	ret.Direction = model.Direction(direction)
	if ret.Codes, err = loadCodes(ctx, conn, id); err != nil {
		return nil, err
	}
	return ret, nil
}

func loadCodes(ctx context.Context, conn repository.Querier, systemID int) ([]model.ScoreCode, error) {
	rows, err := conn.Query(ctx, selectCodes, systemID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ScoreCode, error) {
		var c model.ScoreCode
		var formula string
		err := row.Scan(&c.Name, &c.Description, &formula, &c.Offset, &c.ReferencedCode,
			&c.Discardable, &c.CameToStart, &c.Started, &c.Finished,
			&c.PreserveResult, &c.AdjustsOtherFinishers)
		c.Formula = model.Formula(formula)
		return c, err
	})
}

// Update replaces the attributes and codes of an existing scoring system
func Update(ctx context.Context, conn repository.Querier, system *model.ScoringSystem) error {
	if err := Validate(ctx, conn, system); err != nil {
		return err
	}
	cmdTag, err := conn.Exec(ctx, `
update scoring_system set name=$1, discard_pattern=$2, participation_percent=$3, parent_id=$4,
	direction=$5, missing_result_code=$6, updated_at=now()
where id=$7
	`,
		system.Name, system.DiscardPattern, system.ParticipationPercent, system.ParentID,
		string(system.EffectiveDirection()), system.MissingResultCode, system.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNoData
	}
	if _, err := conn.Exec(ctx, "delete from score_code where scoring_system_id=$1", system.ID); err != nil {
		return err
	}
	for i := range system.Codes {
		if err := upsertCode(ctx, conn, system.ID, &system.Codes[i]); err != nil {
			return err
		}
	}
	return nil
}

// UpsertCode adds or replaces a single code after validating the resulting library
func UpsertCode(ctx context.Context, conn repository.Querier, systemID int, c *model.ScoreCode) error {
	system, err := LoadByID(ctx, conn, systemID)
	if err != nil {
		return err
	}
	replaced := false
	for i := range system.Codes {
		if system.Codes[i].Name == c.Name {
			system.Codes[i] = *c
			replaced = true
		}
	}
	if !replaced {
		system.Codes = append(system.Codes, *c)
	}
	if err := Validate(ctx, conn, system); err != nil {
		return err
	}
	return upsertCode(ctx, conn, systemID, c)
}

func upsertCode(ctx context.Context, conn repository.Querier, systemID int, c *model.ScoreCode) error {
	_, err := conn.Exec(ctx, `
insert into score_code (scoring_system_id, name, description, formula, code_offset, referenced_code,
	discardable, came_to_start, started, finished, preserve_result, adjusts_other_finishers)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
on conflict (scoring_system_id, name) do update set
	description=excluded.description, formula=excluded.formula, code_offset=excluded.code_offset,
	referenced_code=excluded.referenced_code, discardable=excluded.discardable,
	came_to_start=excluded.came_to_start, started=excluded.started, finished=excluded.finished,
	preserve_result=excluded.preserve_result, adjusts_other_finishers=excluded.adjusts_other_finishers
	`,
		systemID, c.Name, c.Description, string(c.Formula), c.Offset, c.ReferencedCode,
		c.Discardable, c.CameToStart, c.Started, c.Finished, c.PreserveResult, c.AdjustsOtherFinishers,
	)
	return err
}

// DeleteCode removes a code. Fails if the remaining library becomes invalid
// (e.g. an alias still references the code).
func DeleteCode(ctx context.Context, conn repository.Querier, systemID int, name string) error {
	system, err := LoadByID(ctx, conn, systemID)
	if err != nil {
		return err
	}
	remaining := make([]model.ScoreCode, 0, len(system.Codes))
	for i := range system.Codes {
		if system.Codes[i].Name != name {
			remaining = append(remaining, system.Codes[i])
		}
	}
	system.Codes = remaining
	if err := Validate(ctx, conn, system); err != nil {
		return err
	}
	cmdTag, err := conn.Exec(ctx,
		"delete from score_code where scoring_system_id=$1 and name=$2", systemID, name)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNoData
	}
	return nil
}

// deletes a scoring system, returns number of rows deleted.
func DeleteByID(ctx context.Context, conn repository.Querier, id int) (int, error) {
	cmdTag, err := conn.Exec(ctx, "delete from scoring_system where id=$1", id)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}
