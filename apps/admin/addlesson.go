package main

import (
	"context"

	"github.com/trezcool/darasa/core/lesson"
)

func (cli *commandLine) addLesson(nl lesson.NewLesson) error {
	les, err := cli.lessonSvc.Create(context.Background(), nl)
	if err != nil {
		return err
	}
	logger.Printf("lesson %q created: %s", les.Title, les.ID)
	return nil
}
