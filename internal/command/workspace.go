package command

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"pkt.systems/conch/core"
	"pkt.systems/conch/internal/logx"
	"pkt.systems/conch/internal/workspace"
	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

const wsUsage = "ws [new-project <name>|add <project> <path>|rm <project> [path]|files <project>|save]"

func (h *Handler) handleWorkspace(ctx context.Context, shell core.Shell, cmd Command) error {
	store := h.cfg.Workspace
	if store == nil {
		return errors.New("no workspace configured")
	}
	log := pslog.Ctx(ctx)
	if len(cmd.Args) == 0 {
		var lines []string
		store.View(func(ws *workspace.Workspace) {
			lines = workspaceLines(ws)
		})
		shell.AppendLines(schema.StyleStdout, lines...)
		return nil
	}
	sub, args := cmd.Args[0], cmd.Args[1:]
	log = logx.WithWorkspace(log.With("subcommand", sub), "", store.Path())
	switch sub {
	case "new-project":
		if len(args) != 1 {
			return usageError("ws new-project <name>")
		}
		err := store.Update(func(ws *workspace.Workspace) error {
			_, err := ws.AddProject(args[0])
			return err
		})
		if err != nil {
			log.Debug("command ws failed", "err", err)
			return err
		}
		shell.Append("project created: "+args[0], schema.StyleStdout)
	case "add":
		if len(args) != 2 {
			return usageError("ws add <project> <path>")
		}
		entry, err := workspace.EntryForPath(resolvePath(shell.WorkingDir(), args[1]))
		if err != nil {
			return err
		}
		err = store.Update(func(ws *workspace.Workspace) error {
			project, ok := ws.Project(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", schema.ErrUnknownProject, args[0])
			}
			project.Add(entry)
			return nil
		})
		if err != nil {
			log.Debug("command ws failed", "err", err)
			return err
		}
		shell.Append(fmt.Sprintf("added %s to %s", entry.Label(), args[0]), schema.StyleStdout)
	case "rm":
		if len(args) < 1 || len(args) > 2 {
			return usageError("ws rm <project> [path]")
		}
		err := store.Update(func(ws *workspace.Workspace) error {
			if len(args) == 1 {
				return ws.RemoveProject(args[0])
			}
			project, ok := ws.Project(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", schema.ErrUnknownProject, args[0])
			}
			path := resolvePath(shell.WorkingDir(), args[1])
			if !project.Remove(path) {
				return fmt.Errorf("%s is not part of %s", path, args[0])
			}
			return nil
		})
		if err != nil {
			log.Debug("command ws failed", "err", err)
			return err
		}
		shell.Append("removed", schema.StyleStdout)
	case "files":
		if len(args) != 1 {
			return usageError("ws files <project>")
		}
		var project *workspace.Project
		store.View(func(ws *workspace.Workspace) {
			if p, ok := ws.Project(args[0]); ok {
				project = &workspace.Project{Name: p.Name, Entries: append([]workspace.Entry(nil), p.Entries...)}
			}
		})
		if project == nil {
			return fmt.Errorf("%w: %s", schema.ErrUnknownProject, args[0])
		}
		files, err := project.Files(ctx)
		if err != nil {
			log.Warn("command ws files failed", "err", err)
			return err
		}
		if len(files) == 0 {
			shell.Append("no files", schema.StyleStdout)
			return nil
		}
		shell.AppendLines(schema.StyleStdout, files...)
	case "save":
		if len(args) != 0 {
			return usageError("ws save")
		}
		if err := store.Save(); err != nil {
			log.Warn("command ws save failed", "err", err)
			return err
		}
		shell.Append("workspace saved: "+store.Path(), schema.StyleStdout)
	default:
		return usageError(wsUsage)
	}
	log.Info("command ws completed")
	return nil
}

func workspaceLines(ws *workspace.Workspace) []string {
	lines := []string{"workspace: " + ws.Name}
	if len(ws.Projects) == 0 {
		return append(lines, "  no projects")
	}
	for _, project := range ws.Projects {
		lines = append(lines, "  "+project.Name+"/")
		lines = appendEntryLines(lines, project.Entries, "    ")
	}
	return lines
}

func appendEntryLines(lines []string, entries []workspace.Entry, indent string) []string {
	sorted := append([]workspace.Entry(nil), entries...)
	workspace.SortEntries(sorted, language.Und)
	for _, entry := range sorted {
		switch e := entry.(type) {
		case workspace.LogicalFolderEntry:
			lines = append(lines, indent+e.Label()+"/")
			lines = appendEntryLines(lines, e.Entries, indent+"  ")
		case workspace.FolderEntry:
			lines = append(lines, indent+e.Label()+"/ ("+e.Path+")")
		default:
			lines = append(lines, indent+entry.Label())
		}
	}
	return lines
}
