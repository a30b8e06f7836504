// Sentctl is a command-line client for exercising a sentedit system:
// one subcommand per client operation, dispatched against a single
// identity and Name Node address given as global flags.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"sentedit.dev/sentedit/acl"
	"sentedit.dev/sentedit/client"
	"sentedit.dev/sentedit/editengine"
	"sentedit.dev/sentedit/version"
)

var commands = map[string]func(*State, ...string){
	"register":       (*State).register,
	"view":           (*State).view,
	"users":          (*State).users,
	"create":         (*State).create,
	"read":           (*State).read,
	"stream":         (*State).stream,
	"write":          (*State).write,
	"undo":           (*State).undo,
	"info":           (*State).info,
	"copy":           (*State).copy,
	"rm":             (*State).rm,
	"addaccess":      (*State).addAccess,
	"remaccess":      (*State).remAccess,
	"lock":           (*State).lock,
	"unlock":         (*State).unlock,
	"reqaccess":      (*State).reqAccess,
	"requests":       (*State).requests,
	"approve":        (*State).approve,
	"deny":           (*State).deny,
	"mkdir":          (*State).mkdir,
	"mv":             (*State).mv,
	"ls":             (*State).ls,
	"checkpoint":     (*State).checkpoint,
	"viewcheckpoint": (*State).viewCheckpoint,
	"revert":         (*State).revert,
	"checkpoints":    (*State).checkpoints,
}

// State carries the client and the current subcommand's name, for
// error messages.
type State struct {
	op     string
	client *client.Client
}

func main() {
	identity := flag.String("id", "", "caller identity (required)")
	nnAddr := flag.String("nn_addr", "localhost:5000", "Name Node address")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	op := strings.ToLower(flag.Arg(0))

	// version cannot be in commands: it needs no identity or Name
	// Node connection, so it is dispatched before either is required.
	if op == "version" {
		fmt.Print(version.Version())
		return
	}

	fn := commands[op]
	if fn == nil {
		fmt.Fprintf(os.Stderr, "sentctl: no such command %q\n", flag.Arg(0))
		usage()
	}
	if *identity == "" {
		fmt.Fprintln(os.Stderr, "sentctl: -id is required")
		usage()
	}

	s := &State{op: op, client: client.New(*identity, *nnAddr)}
	defer s.client.Close()
	fn(s, flag.Args()[1:]...)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage of sentctl:\n")
	fmt.Fprintf(os.Stderr, "\tsentctl [globalflags] <command> [args]\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	var names []string
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(os.Stderr, "\tversion\n")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "\t%s\n", name)
	}
	fmt.Fprintf(os.Stderr, "Global flags:\n")
	flag.PrintDefaults()
	os.Exit(2)
}

// exitf prints the error, prefixed with the current subcommand, and
// exits with a non-zero status.
func (s *State) exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "sentctl: %s: %s\n", s.op, fmt.Sprintf(format, args...))
	os.Exit(1)
}

func (s *State) exit(err error) {
	s.exitf("%v", err)
}

func (s *State) subUsage(fs *flag.FlagSet, msg string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: sentctl %s\n", msg)
		n := 0
		fs.VisitAll(func(*flag.Flag) { n++ })
		if n > 0 {
			fmt.Fprintf(os.Stderr, "Flags:\n")
			fs.PrintDefaults()
		}
		os.Exit(2)
	}
}

func (s *State) register(args ...string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "register address")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
	}
	if err := s.client.Register(fs.Arg(0)); err != nil {
		s.exit(err)
	}
}

func (s *State) view(args ...string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "view")
	fs.Parse(args)
	rows, err := s.client.View()
	if err != nil {
		s.exit(err)
	}
	for _, r := range rows {
		fmt.Printf("%s\t%s\t%d words\t%d chars\n", r.Filename, r.Owner, r.Words, r.Chars)
	}
}

func (s *State) users(args ...string) {
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "users")
	fs.Parse(args)
	ids, addrs, err := s.client.ListUsers()
	if err != nil {
		s.exit(err)
	}
	for i, id := range ids {
		fmt.Printf("%s\t%s\n", id, addrs[i])
	}
}

func (s *State) create(args ...string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "create filename")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
	}
	if err := s.client.Create(fs.Arg(0)); err != nil {
		s.exit(err)
	}
}

func (s *State) read(args ...string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "read filename")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
	}
	body, err := s.client.Read(fs.Arg(0))
	if err != nil {
		s.exit(err)
	}
	fmt.Println(body)
}

func (s *State) stream(args ...string) {
	fs := flag.NewFlagSet("stream", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "stream filename")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
	}
	sentences, err := s.client.Stream(fs.Arg(0))
	if err != nil {
		s.exit(err)
	}
	for i, sent := range sentences {
		fmt.Printf("%d: %s\n", i, sent)
	}
}

func (s *State) write(args ...string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "write filename script")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
	}
	script, err := editengine.ParseScript(fs.Arg(1))
	if err != nil {
		s.exit(err)
	}
	if err := s.client.WriteCommit(fs.Arg(0), script); err != nil {
		s.exit(err)
	}
}

func (s *State) undo(args ...string) {
	fs := flag.NewFlagSet("undo", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "undo filename")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
	}
	if err := s.client.Undo(fs.Arg(0)); err != nil {
		s.exit(err)
	}
}

func (s *State) info(args ...string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "info filename")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
	}
	fi, err := s.client.Info(fs.Arg(0))
	if err != nil {
		s.exit(err)
	}
	fmt.Printf("owner: %s\n", fi.Owner)
	fmt.Printf("created: %s\n", fi.Created)
	fmt.Printf("modified: %s\n", fi.Modified)
	fmt.Printf("accessed: %s by %s\n", fi.Accessed, fi.LastAccessedBy)
	fmt.Printf("words: %d  chars: %d\n", fi.Words, fi.Chars)
	for _, e := range fi.ACL {
		fmt.Printf("acl: %s %s\n", e.Identity, e.Perm)
	}
}

func (s *State) copy(args ...string) {
	fs := flag.NewFlagSet("copy", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "copy src dst")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
	}
	if err := s.client.Copy(fs.Arg(0), fs.Arg(1)); err != nil {
		s.exit(err)
	}
}

func (s *State) rm(args ...string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "rm filename")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
	}
	if err := s.client.Delete(fs.Arg(0)); err != nil {
		s.exit(err)
	}
}

func parsePerm(s string) acl.Permission {
	var p acl.Permission
	for _, c := range strings.ToUpper(s) {
		switch c {
		case 'R':
			p |= acl.Read
		case 'W':
			p |= acl.Write
		}
	}
	return p
}

func (s *State) addAccess(args ...string) {
	fs := flag.NewFlagSet("addaccess", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "addaccess filename identity perm(R|W|RW)")
	fs.Parse(args)
	if fs.NArg() != 3 {
		fs.Usage()
	}
	if err := s.client.AddAccess(fs.Arg(0), fs.Arg(1), parsePerm(fs.Arg(2))); err != nil {
		s.exit(err)
	}
}

func (s *State) remAccess(args ...string) {
	fs := flag.NewFlagSet("remaccess", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "remaccess filename identity")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
	}
	if err := s.client.RemAccess(fs.Arg(0), fs.Arg(1)); err != nil {
		s.exit(err)
	}
}

func atoiOrExit(s *State, fs *flag.FlagSet, arg string) int {
	var n int
	if _, err := fmt.Sscanf(arg, "%d", &n); err != nil {
		fs.Usage()
	}
	return n
}

func (s *State) lock(args ...string) {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "lock filename sentence-index")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
	}
	idx := atoiOrExit(s, fs, fs.Arg(1))
	addr, err := s.client.LockAcquire(fs.Arg(0), idx)
	if err != nil {
		s.exit(err)
	}
	fmt.Println(addr)
}

func (s *State) unlock(args ...string) {
	fs := flag.NewFlagSet("unlock", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "unlock filename sentence-index")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
	}
	idx := atoiOrExit(s, fs, fs.Arg(1))
	if err := s.client.LockRelease(fs.Arg(0), idx); err != nil {
		s.exit(err)
	}
}

func (s *State) reqAccess(args ...string) {
	fs := flag.NewFlagSet("reqaccess", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "reqaccess filename")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
	}
	if err := s.client.RequestAccess(fs.Arg(0)); err != nil {
		s.exit(err)
	}
}

func (s *State) requests(args ...string) {
	fs := flag.NewFlagSet("requests", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "requests")
	fs.Parse(args)
	reqs, err := s.client.ViewRequests()
	if err != nil {
		s.exit(err)
	}
	for _, r := range reqs {
		fmt.Printf("%s\t%s\n", r.Filename, r.Requester)
	}
}

func (s *State) approve(args ...string) {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "approve filename requester")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
	}
	if err := s.client.ApproveRequest(fs.Arg(0), fs.Arg(1)); err != nil {
		s.exit(err)
	}
}

func (s *State) deny(args ...string) {
	fs := flag.NewFlagSet("deny", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "deny filename requester")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
	}
	if err := s.client.DenyRequest(fs.Arg(0), fs.Arg(1)); err != nil {
		s.exit(err)
	}
}

func (s *State) mkdir(args ...string) {
	fs := flag.NewFlagSet("mkdir", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "mkdir folder")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
	}
	if err := s.client.CreateFolder(fs.Arg(0)); err != nil {
		s.exit(err)
	}
}

func (s *State) mv(args ...string) {
	fs := flag.NewFlagSet("mv", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "mv filename folder")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
	}
	if err := s.client.Move(fs.Arg(0), fs.Arg(1)); err != nil {
		s.exit(err)
	}
}

func (s *State) ls(args ...string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "ls folder")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
	}
	rows, err := s.client.ViewFolder(fs.Arg(0))
	if err != nil {
		s.exit(err)
	}
	for _, r := range rows {
		fmt.Printf("%s\t%s\t%d words\t%d chars\n", r.Filename, r.Owner, r.Words, r.Chars)
	}
}

func (s *State) checkpoint(args ...string) {
	fs := flag.NewFlagSet("checkpoint", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "checkpoint filename tag")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
	}
	if err := s.client.Checkpoint(fs.Arg(0), fs.Arg(1)); err != nil {
		s.exit(err)
	}
}

func (s *State) viewCheckpoint(args ...string) {
	fs := flag.NewFlagSet("viewcheckpoint", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "viewcheckpoint filename tag")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
	}
	body, err := s.client.ViewCheckpoint(fs.Arg(0), fs.Arg(1))
	if err != nil {
		s.exit(err)
	}
	fmt.Println(body)
}

func (s *State) revert(args ...string) {
	fs := flag.NewFlagSet("revert", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "revert filename tag")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
	}
	if err := s.client.Revert(fs.Arg(0), fs.Arg(1)); err != nil {
		s.exit(err)
	}
}

func (s *State) checkpoints(args ...string) {
	fs := flag.NewFlagSet("checkpoints", flag.ExitOnError)
	fs.Usage = s.subUsage(fs, "checkpoints filename")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
	}
	list, err := s.client.ListCheckpoints(fs.Arg(0))
	if err != nil {
		s.exit(err)
	}
	for _, c := range list {
		fmt.Printf("%s\t%s\n", c.Tag, c.At)
	}
}
