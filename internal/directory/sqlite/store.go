package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spigell/mentor-matcher/internal/directory"
)

var _ directory.Store = (*Store)(nil)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	profileColumns    = `uid, display_name, user_type, technologies, bio, years_of_experience, rating, total_mentees, availability`
	mentorshipColumns = `id, mentee_id, technologies, challenge_description, status, mentor_id, invited_mentor_ids, created_at, updated_at`
	invitationColumns = `id, mentorship_id, mentor_id, status, message, created_at, responded_at`
)

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) PutProfile(ctx context.Context, p *directory.Profile) error {
	techs, err := json.Marshal(p.Technologies)
	if err != nil {
		return fmt.Errorf("encode technologies: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			display_name = excluded.display_name,
			user_type = excluded.user_type,
			technologies = excluded.technologies,
			bio = excluded.bio,
			years_of_experience = excluded.years_of_experience,
			rating = excluded.rating,
			total_mentees = excluded.total_mentees,
			availability = excluded.availability
	`, p.UID, p.DisplayName, string(p.UserType), string(techs), p.Bio, p.YearsOfExperience, p.Rating, p.TotalMentees, p.Availability)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, uid string) (*directory.Profile, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE uid = ?`, uid)
	return scanProfile(row)
}

func (s *Store) ListProfiles(ctx context.Context, q directory.ProfileQuery) ([]*directory.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles`
	args := []any{}
	if q.UserType != "" {
		query += ` WHERE user_type = ?`
		args = append(args, string(q.UserType))
	}
	query += ` ORDER BY seq`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	result := make([]*directory.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) CreateMentorship(ctx context.Context, m *directory.Mentorship, invitations []*directory.Invitation) error {
	invited := append([]string(nil), m.InvitedMentorIDs...)
	for _, inv := range invitations {
		if !slices.Contains(invited, inv.MentorID) {
			invited = append(invited, inv.MentorID)
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		techs, err := json.Marshal(nonNil(m.Technologies))
		if err != nil {
			return fmt.Errorf("encode technologies: %w", err)
		}
		invitedJSON, err := json.Marshal(nonNil(invited))
		if err != nil {
			return fmt.Errorf("encode invited mentors: %w", err)
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO mentorships (`+mentorshipColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.MenteeID, string(techs), m.ChallengeDescription, string(m.Status), m.MentorID, string(invitedJSON),
			formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
		if err != nil {
			return translateInsertErr(fmt.Errorf("insert mentorship: %w", err))
		}

		for _, inv := range invitations {
			if err := insertInvitation(ctx, tx, inv); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetMentorship(ctx context.Context, id string) (*directory.Mentorship, error) {
	return getMentorship(ctx, s.conn, id)
}

func (s *Store) ListMentorships(ctx context.Context, q directory.MentorshipQuery) ([]*directory.Mentorship, error) {
	var (
		where []string
		args  []any
	)
	if q.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(q.Status))
	}
	if q.ParticipantID != "" {
		where = append(where, `(mentee_id = ? OR mentor_id = ?)`)
		args = append(args, q.ParticipantID, q.ParticipantID)
	}

	query := `SELECT ` + mentorshipColumns + ` FROM mentorships`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY seq`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mentorships: %w", err)
	}
	defer rows.Close()

	result := make([]*directory.Mentorship, 0)
	for rows.Next() {
		m, err := scanMentorship(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *Store) AddInvitation(ctx context.Context, inv *directory.Invitation) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := getMentorship(ctx, tx, inv.MentorshipID)
		if err != nil {
			return err
		}
		if !m.IsOpen() {
			return directory.ErrMentorshipFilled
		}

		if err := insertInvitation(ctx, tx, inv); err != nil {
			return err
		}

		if m.HasInvited(inv.MentorID) {
			return nil
		}
		invited, err := json.Marshal(append(m.InvitedMentorIDs, inv.MentorID))
		if err != nil {
			return fmt.Errorf("encode invited mentors: %w", err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE mentorships SET invited_mentor_ids = ?, updated_at = ? WHERE id = ?`,
			string(invited), formatTime(inv.CreatedAt), m.ID)
		if err != nil {
			return fmt.Errorf("update invited mentors: %w", err)
		}
		return nil
	})
}

func (s *Store) GetInvitation(ctx context.Context, id string) (*directory.Invitation, error) {
	return getInvitation(ctx, s.conn, id)
}

func (s *Store) ListInvitations(ctx context.Context, q directory.InvitationQuery) ([]*directory.Invitation, error) {
	var (
		where []string
		args  []any
	)
	if q.MentorshipID != "" {
		where = append(where, `mentorship_id = ?`)
		args = append(args, q.MentorshipID)
	}
	if q.MentorID != "" {
		where = append(where, `mentor_id = ?`)
		args = append(args, q.MentorID)
	}
	if q.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(q.Status))
	}

	query := `SELECT ` + invitationColumns + ` FROM invitations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY seq`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	result := make([]*directory.Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

func (s *Store) DeclineInvitation(ctx context.Context, id string, at time.Time) (*directory.Invitation, error) {
	var declined *directory.Invitation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE invitations SET status = ?, responded_at = ? WHERE id = ? AND status = ?`,
			string(directory.InvitationDeclined), formatTime(at), id, string(directory.InvitationPending))
		if err != nil {
			return fmt.Errorf("decline invitation: %w", err)
		}

		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("decline invitation: %w", err)
		} else if n == 0 {
			if _, err := getInvitation(ctx, tx, id); err != nil {
				return err
			}
			return directory.ErrAlreadyResponded
		}

		declined, err = getInvitation(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return declined, nil
}

// AcceptInvitation performs the compare-and-set on (status, mentor_id) and the
// invitation updates in one transaction; any failed condition rolls back all of it.
func (s *Store) AcceptInvitation(ctx context.Context, id string, at time.Time) (*directory.Invitation, *directory.Mentorship, error) {
	var (
		accepted   *directory.Invitation
		mentorship *directory.Mentorship
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		inv, err := getInvitation(ctx, tx, id)
		if err != nil {
			return err
		}
		stamp := formatTime(at)

		res, err := tx.ExecContext(ctx, `
			UPDATE mentorships SET status = ?, mentor_id = ?, updated_at = ?
			WHERE id = ? AND status = ? AND mentor_id = ''`,
			string(directory.MentorshipActive), inv.MentorID, stamp, inv.MentorshipID, string(directory.MentorshipPending))
		if err != nil {
			return fmt.Errorf("assign mentor: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("assign mentor: %w", err)
		} else if n == 0 {
			if _, err := getMentorship(ctx, tx, inv.MentorshipID); err != nil {
				return err
			}
			return directory.ErrMentorshipFilled
		}

		res, err = tx.ExecContext(ctx, `UPDATE invitations SET status = ?, responded_at = ? WHERE id = ? AND status = ?`,
			string(directory.InvitationAccepted), stamp, id, string(directory.InvitationPending))
		if err != nil {
			return fmt.Errorf("accept invitation: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("accept invitation: %w", err)
		} else if n == 0 {
			return directory.ErrAlreadyResponded
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE invitations SET status = ?, responded_at = ?
			WHERE mentorship_id = ? AND id <> ? AND status = ?`,
			string(directory.InvitationDeclined), stamp, inv.MentorshipID, id, string(directory.InvitationPending))
		if err != nil {
			return fmt.Errorf("decline sibling invitations: %w", err)
		}

		if accepted, err = getInvitation(ctx, tx, id); err != nil {
			return err
		}
		mentorship, err = getMentorship(ctx, tx, inv.MentorshipID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return accepted, mentorship, nil
}

func insertInvitation(ctx context.Context, q queryer, inv *directory.Invitation) error {
	var responded any
	if inv.RespondedAt != nil {
		responded = formatTime(*inv.RespondedAt)
	}
	_, err := q.ExecContext(ctx, `INSERT INTO invitations (`+invitationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.MentorshipID, inv.MentorID, string(inv.Status), inv.Message, formatTime(inv.CreatedAt), responded)
	if err != nil {
		return translateInsertErr(fmt.Errorf("insert invitation: %w", err))
	}
	return nil
}

func getMentorship(ctx context.Context, q queryer, id string) (*directory.Mentorship, error) {
	row := q.QueryRowContext(ctx, `SELECT `+mentorshipColumns+` FROM mentorships WHERE id = ?`, id)
	return scanMentorship(row)
}

func getInvitation(ctx context.Context, q queryer, id string) (*directory.Invitation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id)
	return scanInvitation(row)
}

func scanProfile(row scanner) (*directory.Profile, error) {
	var (
		p        directory.Profile
		userType string
		techs    string
	)
	err := row.Scan(&p.UID, &p.DisplayName, &userType, &techs, &p.Bio, &p.YearsOfExperience, &p.Rating, &p.TotalMentees, &p.Availability)
	if err != nil {
		return nil, notFound(err, "scan profile")
	}
	p.UserType = directory.UserType(userType)
	if err := json.Unmarshal([]byte(techs), &p.Technologies); err != nil {
		return nil, fmt.Errorf("decode technologies of %q: %w", p.UID, err)
	}
	return &p, nil
}

func scanMentorship(row scanner) (*directory.Mentorship, error) {
	var (
		m                    directory.Mentorship
		status               string
		techs, invited       string
		createdAt, updatedAt string
	)
	err := row.Scan(&m.ID, &m.MenteeID, &techs, &m.ChallengeDescription, &status, &m.MentorID, &invited, &createdAt, &updatedAt)
	if err != nil {
		return nil, notFound(err, "scan mentorship")
	}
	m.Status = directory.MentorshipStatus(status)
	if err := json.Unmarshal([]byte(techs), &m.Technologies); err != nil {
		return nil, fmt.Errorf("decode technologies of %q: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(invited), &m.InvitedMentorIDs); err != nil {
		return nil, fmt.Errorf("decode invited mentors of %q: %w", m.ID, err)
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanInvitation(row scanner) (*directory.Invitation, error) {
	var (
		inv       directory.Invitation
		status    string
		createdAt string
		responded sql.NullString
	)
	err := row.Scan(&inv.ID, &inv.MentorshipID, &inv.MentorID, &status, &inv.Message, &createdAt, &responded)
	if err != nil {
		return nil, notFound(err, "scan invitation")
	}
	inv.Status = directory.InvitationStatus(status)
	if inv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if responded.Valid {
		at, err := parseTime(responded.String)
		if err != nil {
			return nil, err
		}
		inv.RespondedAt = &at
	}
	return &inv, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return directory.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// translateInsertErr maps unique constraint violations to ErrConflict.
func translateInsertErr(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed: invitations.mentorship_id, invitations.mentor_id") {
		return directory.ErrAlreadyInvited
	}
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", directory.ErrConflict, err)
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
