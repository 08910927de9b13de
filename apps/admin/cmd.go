package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/darasa/core/lesson"
	"github.com/trezcool/darasa/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sqlx.DB
	usrSvc    *user.Service
	lessonSvc *lesson.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - run pending database migrations")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-admin] - add a user; the password is prompted next")
	fmt.Println("  addlesson -title TITLE -video REF -date YYYY-MM-DD [-class ID] [-visibility all|class_only|complementary] - add a lesson")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant all roles to the user.")

	addLessonCmd := flag.NewFlagSet("addlesson", flag.ExitOnError)
	addLessonTitle := addLessonCmd.String("title", "", "The lesson's title.")
	addLessonDesc := addLessonCmd.String("desc", "", "The lesson's description.")
	addLessonVideo := addLessonCmd.String("video", "", "The lesson's video reference (YouTube URL or ID).")
	addLessonDate := addLessonCmd.String("date", "", "The lesson's scheduled date (YYYY-MM-DD).")
	addLessonClass := addLessonCmd.String("class", "", "The class the lesson belongs to.")
	addLessonVisibility := addLessonCmd.String("visibility", string(lesson.VisibilityAll), "The lesson's visibility.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, *addUserAdmin)
	case "addlesson":
		if err := addLessonCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addLessonTitle == "" || *addLessonVideo == "" || *addLessonDate == "" {
			addLessonCmd.Usage()
			return errHelp
		}
		date, err := time.Parse("2006-01-02", *addLessonDate)
		if err != nil {
			return err
		}
		return cli.addLesson(lesson.NewLesson{
			Title:         *addLessonTitle,
			Description:   *addLessonDesc,
			VideoRef:      *addLessonVideo,
			ScheduledDate: date,
			ClassID:       *addLessonClass,
			Visibility:    lesson.Visibility(*addLessonVisibility),
		})
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
