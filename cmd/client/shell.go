package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sitebatch/maintenance/internal/client/authflow"
	"github.com/sitebatch/maintenance/internal/client/defects"
	"github.com/sitebatch/maintenance/internal/client/report"
	"github.com/sitebatch/maintenance/internal/models"
	"go.uber.org/zap"
)

const helpText = `Available commands:
  login <email> <password> [remember]   sign in
  signup <email> <password>             create an account
  forgot <email>                        send a password reset e-mail
  reset <password> <confirm>            set a new password
  link <url>                            open an app link or an e-mailed verify link
  logout                                sign out
  list                                  show all defects, newest first
  new                                   report a defect
  show <n>                              open defect n of the list
  status                                advance the status of the open defect
  actions <text>                        set the actions taken
  company <text>                        set the repair company
  photo <path>                          stage a repair photo
  save                                  save the open defect
  log                                   show the activity log of the open defect
  export <file.xlsx>                    export the list to a spreadsheet
  exit`

// backendAPI is the part of the backend client the shell drives.
type backendAPI interface {
	defects.Rows
	defects.Objects
	BaseURL() string
	FollowVerifyLink(ctx context.Context, link string) (string, error)
}

// shell is the interactive front end over the client packages.
type shell struct {
	api   backendAPI
	users defects.Users
	flow  *authflow.Flow
	log   *zap.Logger
	// color enables ANSI status badges.
	color bool

	list    *defects.ListView
	creator *defects.Creator
	editor  *defects.Editor

	in  *bufio.Scanner
	out io.Writer
}

func newShell(api backendAPI, users defects.Users, flow *authflow.Flow, in io.Reader, out io.Writer, log *zap.Logger) *shell {
	return &shell{
		api:     api,
		users:   users,
		flow:    flow,
		log:     log,
		list:    defects.NewListView(api),
		creator: defects.NewCreator(api, api, users, log),
		in:      bufio.NewScanner(in),
		out:     out,
	}
}

func (s *shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// prompt reads one line after printing label. It returns false at the end
// of input.
func (s *shell) prompt(label string) (string, bool) {
	s.printf("%s", label)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

// showScreen prints the screen the flow is on together with any pending notice.
func (s *shell) showScreen() {
	if n := s.flow.Notice(); n != "" {
		s.printf("%s\n", n)
	}
	switch s.flow.Screen() {
	case authflow.ScreenLogin:
		if c, ok := s.flow.Prefill(); ok {
			s.printf("Login (remembered: %s)\n", c.Email)
		} else {
			s.printf("Login\n")
		}
	case authflow.ScreenResetPassword:
		s.printf("Set a new password with: reset <password> <confirm>\n")
	case authflow.ScreenHome:
		if u := s.users.CurrentUser(); u != nil {
			s.printf("Signed in as %s\n", u.Email)
		}
	default:
		s.printf("%s\n", s.flow.Screen())
	}
}

// run reads commands until exit or the end of input.
func (s *shell) run(ctx context.Context) {
	for {
		line, ok := s.prompt("maintenance> ")
		if !ok {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			s.printf("Bye\n")
			return
		}
		if err := s.dispatch(ctx, args[0], args[1:], rest(line)); err != nil {
			s.printf("Error: %s\n", err)
		}
	}
}

// rest returns line without its first word.
func rest(line string) string {
	_, after, _ := strings.Cut(strings.TrimSpace(line), " ")
	return strings.TrimSpace(after)
}

var errNotSignedIn = errors.New("sign in first")

func (s *shell) dispatch(ctx context.Context, cmd string, args []string, text string) error {
	switch cmd {
	case "help":
		s.printf("%s\n", helpText)
		return nil
	case "login":
		if len(args) < 2 {
			return errors.New("usage: login <email> <password> [remember]")
		}
		if err := s.flow.SignIn(ctx, args[0], args[1], len(args) > 2 && args[2] == "remember"); err != nil {
			return err
		}
		s.showScreen()
		return nil
	case "signup":
		if len(args) < 2 {
			return errors.New("usage: signup <email> <password>")
		}
		s.flow.EnterSignUp()
		if err := s.flow.SignUp(ctx, args[0], args[1]); err != nil {
			return err
		}
		s.showScreen()
		return nil
	case "forgot":
		return s.flow.ForgotPassword(ctx, text)
	case "reset":
		if len(args) < 2 {
			return authflow.ErrPasswordsRequired
		}
		if err := s.flow.ResetPassword(ctx, args[0], args[1]); err != nil {
			return err
		}
		s.showScreen()
		return nil
	case "link":
		return s.openLink(ctx, text)
	case "logout":
		s.editor = nil
		if err := s.flow.SignOut(ctx); err != nil {
			s.log.Warn("sign out failed", zap.Error(err))
		}
		s.showScreen()
		return nil
	}

	if s.flow.Screen() != authflow.ScreenHome {
		return errNotSignedIn
	}
	switch cmd {
	case "list":
		return s.showList(ctx)
	case "new":
		return s.createDefect(ctx)
	case "show":
		return s.openDefect(ctx, args)
	case "export":
		if text == "" {
			return errors.New("usage: export <file.xlsx>")
		}
		if err := s.list.Focus(ctx); err != nil {
			return err
		}
		items := s.list.Items()
		if err := report.Save(text, items); err != nil {
			return err
		}
		s.printf("Exported %d defects to %s\n", len(items), text)
		return nil
	}

	if s.editor == nil {
		if isEditorCommand(cmd) {
			return errors.New("open a defect first with: show <n>")
		}
		return fmt.Errorf("unknown command %q, type 'help' for a list of commands", cmd)
	}
	switch cmd {
	case "status":
		return s.apply(defects.CycleStatus{})
	case "actions":
		return s.apply(defects.EditActionsTaken{Text: text})
	case "company":
		return s.apply(defects.EditRepairCompany{Text: text})
	case "photo":
		p, err := defects.FileSource{}.Pick(text)
		if err != nil {
			return err
		}
		return s.apply(defects.AddRepairPhoto{Photo: p})
	case "save":
		if err := s.editor.Save(ctx); err != nil {
			return err
		}
		s.printf("Saved\n")
		s.showState()
		return nil
	case "log":
		entries, err := s.editor.Activity(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			s.printf("No activity yet\n")
		}
		for _, e := range entries {
			s.printf("%s\n", defects.ActivityLine(e))
		}
		return nil
	}
	return fmt.Errorf("unknown command %q, type 'help' for a list of commands", cmd)
}

func isEditorCommand(cmd string) bool {
	switch cmd {
	case "status", "actions", "company", "photo", "save", "log":
		return true
	}
	return false
}

// openLink accepts either an app link or a verify link from an e-mail. A
// verify link is followed to the app link it redirects to.
func (s *shell) openLink(ctx context.Context, link string) error {
	if link == "" {
		return errors.New("usage: link <url>")
	}
	if strings.HasPrefix(link, s.api.BaseURL()) {
		target, err := s.api.FollowVerifyLink(ctx, link)
		if err != nil {
			return err
		}
		link = target
	}
	if _, err := s.flow.Launch(ctx, link); err != nil {
		return err
	}
	s.showScreen()
	return nil
}

func (s *shell) showList(ctx context.Context) error {
	if err := s.list.Focus(ctx); err != nil {
		return err
	}
	items := s.list.Items()
	if len(items) == 0 {
		s.printf("No defects reported\n")
		return nil
	}
	for i, d := range items {
		row := defects.Present(d)
		s.printf("%3d. %s %-14s %-30s P%s  %s  %s\n",
			i+1, s.badge(row), row.Asset, row.Title, row.Priority, row.Category, row.Created)
	}
	return nil
}

func (s *shell) openDefect(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: show <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("not a number: %s", args[0])
	}
	d, err := s.list.Select(n - 1)
	if err != nil {
		return err
	}
	ed := defects.NewEditor(d, s.api, s.api, s.users, s.log)
	if err := ed.Open(ctx); err != nil {
		s.log.Warn("refetching defect failed", zap.String("defect_id", d.ID), zap.Error(err))
	}
	s.editor = ed
	s.showState()
	return nil
}

func (s *shell) apply(ev defects.Event) error {
	if err := s.editor.Dispatch(ev); err != nil {
		return err
	}
	s.showState()
	return nil
}

func (s *shell) showState() {
	st := s.editor.State()
	d := st.Defect
	s.printf("%s: %s\n", d.Asset, d.Title)
	if d.Description != "" {
		s.printf("  %s\n", d.Description)
	}
	s.printf("  Category: %s  Priority: %d  Submitted by: %s\n", d.Category, d.Priority, d.SubmittedBy)
	status := string(st.Status)
	if st.Locked {
		status += " (Locked)"
	}
	s.printf("  Status: %s\n", status)
	s.printf("  Actions taken: %s\n", st.ActionsTaken)
	s.printf("  Repair company: %s\n", st.RepairCompany)
	for _, u := range d.PhotoURLs {
		s.printf("  Photo: %s\n", u)
	}
	for _, u := range d.RepairPhotos {
		s.printf("  Repair photo: %s\n", u)
	}
	if n := len(st.StagedRepairPhotos); n > 0 {
		s.printf("  %d repair photo(s) staged\n", n)
	}
}

// createDefect walks the creation form field by field.
func (s *shell) createDefect(ctx context.Context) error {
	var draft defects.Draft

	s.printf("Assets: %s\n", strings.Join(defects.Assets, ", "))
	fields := []struct {
		label string
		dst   *string
	}{
		{"Asset: ", &draft.Asset},
		{"Title: ", &draft.Title},
		{"Description: ", &draft.Description},
	}
	for _, f := range fields {
		v, ok := s.prompt(f.label)
		if !ok {
			return io.EOF
		}
		*f.dst = v
	}
	draft.Asset = matchAsset(draft.Asset)

	for _, p := range defects.Priorities {
		s.printf("  %s: %s\n", p.Label, p.Guidance)
	}
	v, ok := s.prompt("Priority (1-5): ")
	if !ok {
		return io.EOF
	}
	draft.Priority = v

	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	s.printf("Categories: %s\n", strings.Join(names, ", "))
	v, ok = s.prompt("Category: ")
	if !ok {
		return io.EOF
	}
	if c, found := models.ParseCategory(v); found {
		v = string(c)
	}
	draft.Category = v

	for {
		v, ok = s.prompt("Photo path (empty to finish): ")
		if !ok || v == "" {
			break
		}
		p, err := defects.FileSource{}.Pick(v)
		if err != nil {
			s.printf("Error: %s\n", err)
			continue
		}
		draft.AddPhoto(p)
	}
	if err := s.reviewPhotos(&draft); err != nil {
		return err
	}

	d, err := s.creator.Submit(ctx, draft)
	if err != nil {
		return err
	}
	s.printf("Defect reported with %d photo(s)\n", len(d.PhotoURLs))
	return s.showList(ctx)
}

// matchAsset returns the known asset equal to v ignoring case, or v.
func matchAsset(v string) string {
	for _, a := range defects.Assets {
		if strings.EqualFold(a, v) {
			return a
		}
	}
	return v
}

// reviewPhotos lists the staged photos and removes the ones the user
// names by number until an empty line.
func (s *shell) reviewPhotos(draft *defects.Draft) error {
	for len(draft.Photos) > 0 {
		for i, p := range draft.Photos {
			s.printf("  %d. %s\n", i+1, p.Name)
		}
		v, ok := s.prompt("Remove photo number (empty to submit): ")
		if !ok {
			return io.EOF
		}
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			s.printf("Error: not a number: %s\n", v)
			continue
		}
		if err := draft.RemovePhoto(n - 1); err != nil {
			s.printf("Error: %s\n", err)
		}
	}
	return nil
}

// badge renders the status of row, coloured with its badge colour when
// colour output is on.
func (s *shell) badge(row defects.Row) string {
	text := "[" + row.Status + "]"
	if !s.color {
		return text
	}
	rgb, err := strconv.ParseUint(strings.TrimPrefix(row.Color, "#"), 16, 32)
	if err != nil {
		return text
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm%s\x1b[0m", rgb>>16&0xff, rgb>>8&0xff, rgb&0xff, text)
}
