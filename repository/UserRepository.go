package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	"storefront/models"

	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	GetUserById(ctx context.Context, id int) (models.User_db, bool, error)
	GetUserByEmail(ctx context.Context, email string) (models.User_db, bool, error)
	EncryptPassword(userPass string) (hashedPassword string, err error)
	VerifyPassword(hashedPassword string, sentPassword string) bool
	UpdatePassword(ctx context.Context, userId int, newPassword string) error
	UpdateProfile(ctx context.Context, userId int, name, phone string) error
	AddNewUser(ctx context.Context, uModel models.User_db) (newUserId int, err error)
	ListUsers(ctx context.Context, limit, offset int) (users []models.User_db, total int, err error)
	CountUsers(ctx context.Context) (int, error)
}

type UserRepo struct {
	db *sql.DB
}

func NewUserRepository(conn *sql.DB) (UserRepository, error) {
	if conn == nil {
		return nil, errors.New("conn must be non-nil")
	}
	err := conn.Ping()
	if err != nil {
		return nil, err
	}
	return &UserRepo{
		db: conn,
	}, nil
}

const userColumns = "id, email, password_hash, name, phone, role, created_at"

func scanUser(s scanner) (u models.User_db, err error) {
	err = s.Scan(&u.Id, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Role, &u.CreatedAt)
	return
}

func (u *UserRepo) GetUserById(ctx context.Context, id int) (uModel models.User_db, exists bool, err error) {
	uModel, err = scanUser(u.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return
		}
		log.Printf("GetUserById: %v", err)
		err = models.ErrServerError
		return
	}
	exists = true
	return
}

func (u *UserRepo) GetUserByEmail(ctx context.Context, email string) (uModel models.User_db, exists bool, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	uModel, err = scanUser(u.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return
		}
		log.Printf("GetUserByEmail: %v", err)
		err = models.ErrServerError
		return
	}
	exists = true
	return
}

func (u *UserRepo) EncryptPassword(userPass string) (hashedPassword string, err error) {
	var password []byte
	password, err = bcrypt.GenerateFromPassword([]byte(userPass), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("EncryptPassword: %v", err)
		err = models.ErrServerError
		return
	}
	hashedPassword = string(password)
	return
}

func (u *UserRepo) VerifyPassword(hashedPassword string, sentPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(sentPassword))
	return err == nil
}

func (u *UserRepo) AddNewUser(ctx context.Context, uModel models.User_db) (newUserId int, err error) {
	if uModel.CreatedAt.IsZero() {
		uModel.CreatedAt = now()
	}
	err = u.db.QueryRowContext(ctx,
		"INSERT INTO users (email, password_hash, name, phone, role, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		strings.ToLower(strings.TrimSpace(uModel.Email)), uModel.PasswordHash, uModel.Name, uModel.Phone, uModel.Role, uModel.CreatedAt,
	).Scan(&newUserId)
	if err != nil {
		log.Printf("AddNewUser: %v", err)
		err = models.ErrServerError
	}
	return
}

func (u *UserRepo) UpdatePassword(ctx context.Context, userId int, newPassword string) error {
	_, err := u.db.ExecContext(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", newPassword, userId)
	if err != nil {
		log.Printf("UpdatePassword: %v", err)
		err = models.ErrServerError
	}
	return err
}

func (u *UserRepo) UpdateProfile(ctx context.Context, userId int, name, phone string) error {
	_, err := u.db.ExecContext(ctx, "UPDATE users SET name = $1, phone = $2 WHERE id = $3", name, phone, userId)
	if err != nil {
		log.Printf("UpdateProfile: %v", err)
		err = models.ErrServerError
	}
	return err
}

func (u *UserRepo) ListUsers(ctx context.Context, limit, offset int) (users []models.User_db, total int, err error) {
	total, err = u.CountUsers(ctx)
	if err != nil {
		return
	}
	rows, e := u.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id LIMIT $1 OFFSET $2", limit, offset)
	if e != nil {
		log.Printf("ListUsers[1]: %v", e)
		err = models.ErrServerError
		return
	}
	defer rows.Close()
	for rows.Next() {
		var usr models.User_db
		usr, err = scanUser(rows)
		if err != nil {
			log.Printf("ListUsers[2]: %v", err)
			err = models.ErrServerError
			return
		}
		users = append(users, usr)
	}
	if err = rows.Err(); err != nil {
		log.Printf("ListUsers[3]: %v", err)
		err = models.ErrServerError
	}
	return
}

func (u *UserRepo) CountUsers(ctx context.Context) (count int, err error) {
	err = u.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		log.Printf("CountUsers: %v", err)
		err = models.ErrServerError
	}
	return
}
