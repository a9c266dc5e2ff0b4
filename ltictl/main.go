package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	. "github.com/edtools/ltibridge/types"
)

const (
	cookiePrefix   = CookieName + "="
	version        = "1.2.0"
	perUserDotFile = ".ltictlrc"
)

// Config is the per-user dotfile, stored in gcfg format.
var Config struct {
	Server struct {
		Host   string
		Cookie string
	}
}

func main() {
	log.SetFlags(log.Ltime)

	cmdLtictl := &cobra.Command{
		Use:   "ltictl",
		Short: "command-line interface to an ltibridge server",
	}

	cmdVersion := &cobra.Command{
		Use:   "version",
		Short: "print the version number of ltictl",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ltictl " + version)
		},
	}
	cmdLtictl.AddCommand(cmdVersion)

	cmdInit := &cobra.Command{
		Use:   "init <hostname>",
		Short: "connect to an ltibridge server",
		Run:   CommandInit,
	}
	cmdLtictl.AddCommand(cmdInit)

	cmdCourses := &cobra.Command{
		Use:   "courses",
		Short: "list the courses the server has seen launches for",
		Run:   CommandCourses,
	}
	cmdCourses.Flags().StringP("label", "l", "", "only list courses with this label")
	cmdLtictl.AddCommand(cmdCourses)

	cmdUsers := &cobra.Command{
		Use:   "users <course_id>",
		Short: "list the users associated with a course",
		Run:   CommandUsers,
	}
	cmdLtictl.AddCommand(cmdUsers)

	cmdResources := &cobra.Command{
		Use:   "resources",
		Short: "list the tool placements the server has seen launches for",
		Run:   CommandResources,
	}
	cmdLtictl.AddCommand(cmdResources)

	cmdConfigXML := &cobra.Command{
		Use:   "config",
		Short: "fetch the tool descriptor XML for pasting into the LMS",
		Run:   CommandConfigXML,
	}
	cmdLtictl.AddCommand(cmdConfigXML)

	cmdLtictl.Execute()
}

// CommandInit stores the host and session cookie in the per-user dotfile.
// The cookie comes from a browser session started by launching the tool
// from the LMS.
func CommandInit(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		cmd.Help()
		return
	}
	host := args[0]

	fmt.Println(
		`Please follow these steps:

1.  Launch the tool from your LMS course so you have an active session

2.  Copy the ` + CookieName + ` cookie from your browser's developer tools

3.  Paste the entire "` + cookiePrefix + `..." string below.

Paste here: `)

	var cookie string
	n, err := fmt.Scanln(&cookie)
	if err != nil {
		log.Fatalf("error encountered while reading the cookie you pasted: %v", err)
	}
	if n != 1 || !strings.HasPrefix(cookie, cookiePrefix) {
		log.Fatalf("the cookie must start with %s; perhaps you copied the wrong thing?", cookiePrefix)
	}

	// set up config
	Config.Server.Host = host
	Config.Server.Cookie = cookie

	// try it out by fetching the user's own record
	mustCheckVersion()
	user := new(User)
	mustGetObject("/users/me", nil, user)

	// save config for later use
	mustWriteConfig()

	log.Printf("cookie verified and saved: welcome %s", user.Name)
}
