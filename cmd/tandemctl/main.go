package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/docopt/docopt-go"

	"tandem/internal/access"
	"tandem/internal/auth"
	"tandem/internal/database"
	"tandem/internal/project"
)

const ctlVersion = "0.1.0"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", 0)
}

func main() {
	usage := `Tandem server administration.

Operates directly on the server database; the server picks changes up on
the next request.

Usage:
    tandemctl adduser --username=<username> --password=<password> [--db=<db>]
    tandemctl rmuser --username=<username> [--db=<db>]
    tandemctl setaccess --username=<username> --project=<id> --level=<level> [--db=<db>]
    tandemctl revokeaccess --username=<username> --project=<id> [--db=<db>]
    tandemctl mkproject --name=<name> --root=<dir> [--db=<db>]
    tandemctl rmproject --project=<id> [--db=<db>]
    tandemctl lsusers [--query=<query>] [--db=<db>]
    tandemctl lsprojects --username=<username> [--db=<db>]

Options:
    -h --help                Show this screen.
    --version                Show version.
    --db=<db>                Path to the server database.
    --username=<username>
    --password=<password>
    --project=<id>           Project id.
    --level=<level>          One of ADMIN, CONTRIBUTOR, READ_ONLY.
    --name=<name>            Project name.
    --root=<dir>             Project root directory.
    --query=<query>          Username substring to match.
`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ctlVersion)
	if err != nil {
		Err.Fatalf("%v", err)
	}

	dbPath, _ := opts.String("--db")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			Err.Fatalf("cannot determine home directory: %v", err)
		}
		dbPath = filepath.Join(home, ".tandem", "tandem.db")
	}
	db, err := database.Open(dbPath)
	if err != nil {
		Err.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	authSvc := auth.NewService(db)
	projectSvc := project.NewService(db)

	switch {
	case command(opts, "adduser"):
		username, _ := opts.String("--username")
		password, _ := opts.String("--password")
		if err := authSvc.AddUser(username, password, nil); err != nil {
			Err.Fatalf("failed to add user: %v", err)
		}
		Out.Printf("added user %s", username)

	case command(opts, "rmuser"):
		username, _ := opts.String("--username")
		if err := authSvc.RemoveUser(username); err != nil {
			Err.Fatalf("failed to remove user: %v", err)
		}
		Out.Printf("removed user %s", username)

	case command(opts, "setaccess"):
		username, _ := opts.String("--username")
		projectID := projectID(opts)
		level, _ := opts.String("--level")
		if !access.Level(level).Valid() {
			Err.Fatalf("invalid access level %q", level)
		}
		if err := authSvc.SetAccess(username, projectID, access.Level(level)); err != nil {
			Err.Fatalf("failed to set access: %v", err)
		}
		Out.Printf("set %s access on project %d for %s", level, projectID, username)

	case command(opts, "revokeaccess"):
		username, _ := opts.String("--username")
		projectID := projectID(opts)
		if err := authSvc.RevokeAccess(username, projectID); err != nil {
			Err.Fatalf("failed to revoke access: %v", err)
		}
		Out.Printf("revoked access on project %d for %s", projectID, username)

	case command(opts, "mkproject"):
		name, _ := opts.String("--name")
		root, _ := opts.String("--root")
		proj, err := projectSvc.Create(name, root)
		if err != nil {
			Err.Fatalf("failed to create project: %v", err)
		}
		Out.Printf("created project %d (%s) at %s", proj.ID, proj.Name, proj.RootDirectory)

	case command(opts, "rmproject"):
		projectID := projectID(opts)
		if err := projectSvc.Delete(projectID); err != nil {
			Err.Fatalf("failed to delete project: %v", err)
		}
		Out.Printf("deleted project %d", projectID)

	case command(opts, "lsusers"):
		query, _ := opts.String("--query")
		users, err := authSvc.Users(query)
		if err != nil {
			Err.Fatalf("failed to list users: %v", err)
		}
		for _, u := range users {
			Out.Printf("%d\t%s", u.ID, u.Username)
		}

	case command(opts, "lsprojects"):
		username, _ := opts.String("--username")
		projects, err := projectSvc.ProjectsForUser(username)
		if err != nil {
			Err.Fatalf("failed to list projects: %v", err)
		}
		for _, p := range projects {
			Out.Printf("%d\t%s\t%s\t%s", p.ID, p.Name, p.Level, p.RootDirectory)
		}
	}
}

func command(opts docopt.Opts, name string) bool {
	ok, _ := opts.Bool(name)
	return ok
}

func projectID(opts docopt.Opts) int64 {
	id, err := opts.Int("--project")
	if err != nil {
		Err.Fatalf("invalid project id: %v", err)
	}
	return int64(id)
}
