package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	. "github.com/edtools/ltibridge/types"
)

// CommandCourses lists the courses the server knows about.
func CommandCourses(cmd *cobra.Command, args []string) {
	mustLoadConfig()
	mustCheckVersion()

	params := make(map[string]string)
	if label := cmd.Flag("label").Value.String(); label != "" {
		params["label"] = label
	}

	courses := []*Course{}
	mustGetObject("/courses", params, &courses)
	if len(courses) == 0 {
		log.Fatalf("no courses found; courses appear after the first launch from the LMS")
	}

	for _, course := range courses {
		fmt.Printf("%d: %s (%s)\n", course.ID, course.Name, course.Label)
	}
}

// CommandUsers lists the users associated with a course.
func CommandUsers(cmd *cobra.Command, args []string) {
	mustLoadConfig()
	mustCheckVersion()

	if len(args) != 1 {
		cmd.Help()
		return
	}

	course := new(Course)
	mustGetObject("/courses/"+args[0], nil, course)
	users := []*User{}
	mustGetObject("/courses/"+args[0]+"/users", nil, &users)

	fmt.Println(course.Name)
	fmt.Println(dashes(len(course.Name)))
	for _, user := range users {
		fmt.Printf("%d: %s <%s>\n", user.ID, user.Name, user.Email)
	}
}

// CommandResources lists the tool placements the server knows about.
func CommandResources(cmd *cobra.Command, args []string) {
	mustLoadConfig()
	mustCheckVersion()

	resources := []*Resource{}
	mustGetObject("/resources", nil, &resources)
	if len(resources) == 0 {
		log.Fatalf("no placements found; placements appear after the first launch from the LMS")
	}

	for _, resource := range resources {
		title := resource.Title
		if title == "" {
			title = resource.ResourceLinkID
		}
		if resource.CourseID > 0 {
			fmt.Printf("%d: %s (course %d)\n", resource.ID, title, resource.CourseID)
		} else {
			fmt.Printf("%d: %s\n", resource.ID, title)
		}
	}
}

// CommandConfigXML fetches the tool descriptor and prints it, ready to be
// pasted into the LMS tool settings.
func CommandConfigXML(cmd *cobra.Command, args []string) {
	mustLoadConfig()

	raw := mustGetRaw("/lti/config.xml")
	fmt.Printf("%s", raw)
}

func dashes(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += "-"
	}
	return s
}
