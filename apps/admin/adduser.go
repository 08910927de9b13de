package main

import (
	"context"

	"github.com/trezcool/darasa/core/user"
)

func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	nu := user.NewUser{
		Name:     name,
		Username: uname,
		Email:    email,
		Password: pwd,
	}
	if nu.Name == "" {
		nu.Name = uname
	}
	if isAdmin {
		nu.Roles = user.AllRoles
	}
	_, err := cli.usrSvc.Create(context.Background(), nu)
	return err
}
