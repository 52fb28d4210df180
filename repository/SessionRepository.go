package repository

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"storefront/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionRepository stores opaque refresh tokens. Each token is a hash
// {userId, role} with a TTL, and every user has a set of live tokens so all of
// them can be revoked at once.
type SessionRepository interface {
	CreateSession(ctx context.Context, userId int, role string, ttl time.Duration) (token string, err error)
	GetUserSessionInfo(ctx context.Context, token string) (userId int, role string, exists bool, err error)
	DeleteSession(ctx context.Context, token string) (err error)
	ConsumeSession(ctx context.Context, token string) (userId int, role string, consumed bool, err error)
	DeleteUserSessions(ctx context.Context, userId int) (err error)
}

type SessionRepo struct {
	rdb *redis.Client
}

func NewSessionRepository(ctx context.Context, redis_conn *redis.Client) (SessionRepository, error) {
	if redis_conn == nil {
		return nil, errors.New("conn must be non-nil")
	}
	err := redis_conn.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}
	return &SessionRepo{
		rdb: redis_conn,
	}, nil
}

func sessionKey(token string) string {
	return "refresh:" + token
}

func userSessionsKey(userId int) string {
	return "user:" + strconv.Itoa(userId) + ":sessions"
}

func (s *SessionRepo) CreateSession(ctx context.Context, userId int, role string, ttl time.Duration) (token string, err error) {
	token = uuid.NewString()
	key := sessionKey(token)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, "userId", userId, "role", role)
	pipe.Expire(ctx, key, ttl)
	pipe.SAdd(ctx, userSessionsKey(userId), token)
	pipe.Expire(ctx, userSessionsKey(userId), ttl)
	if _, err = pipe.Exec(ctx); err != nil {
		log.Printf("CreateSession: %v", err)
		err = models.ErrServerError
		token = ""
	}
	return
}

func (s *SessionRepo) GetUserSessionInfo(ctx context.Context, token string) (userId int, role string, exists bool, err error) {
	val, e := s.rdb.HGetAll(ctx, sessionKey(token)).Result()
	if e != nil {
		log.Printf("GetUserSessionInfo: %v", e)
		err = models.ErrServerError
		return
	}
	if len(val) == 0 {
		return
	}
	userId, _ = strconv.Atoi(val["userId"])
	role = val["role"]
	exists = true
	return
}

func (s *SessionRepo) DeleteSession(ctx context.Context, token string) (err error) {
	userId, _, exists, e := s.GetUserSessionInfo(ctx, token)
	if e != nil {
		return e
	}
	if !exists {
		return
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(token))
	pipe.SRem(ctx, userSessionsKey(userId), token)
	if _, err = pipe.Exec(ctx); err != nil {
		log.Printf("DeleteSession: %v", err)
		err = models.ErrServerError
	}
	return
}

// ConsumeSession reads and deletes a session in one transaction. Of several
// callers holding the same token only one gets consumed == true.
func (s *SessionRepo) ConsumeSession(ctx context.Context, token string) (userId int, role string, consumed bool, err error) {
	key := sessionKey(token)
	pipe := s.rdb.TxPipeline()
	get := pipe.HGetAll(ctx, key)
	del := pipe.Del(ctx, key)
	if _, err = pipe.Exec(ctx); err != nil {
		log.Printf("ConsumeSession[1]: %v", err)
		err = models.ErrServerError
		return
	}
	val := get.Val()
	if len(val) == 0 || del.Val() != 1 {
		return
	}
	userId, _ = strconv.Atoi(val["userId"])
	role = val["role"]
	consumed = true
	if e := s.rdb.SRem(ctx, userSessionsKey(userId), token).Err(); e != nil {
		log.Printf("ConsumeSession[2]: %v", e)
	}
	return
}

func (s *SessionRepo) DeleteUserSessions(ctx context.Context, userId int) (err error) {
	tokens, e := s.rdb.SMembers(ctx, userSessionsKey(userId)).Result()
	if e != nil {
		log.Printf("DeleteUserSessions[1]: %v", e)
		err = models.ErrServerError
		return
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, sessionKey(t))
	}
	keys = append(keys, userSessionsKey(userId))
	if err = s.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Printf("DeleteUserSessions[2]: %v", err)
		err = models.ErrServerError
	}
	return
}
