package taroAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/taroAuth/store"
)

const (
	maxUserDataTitle   = 200
	maxUserDataContent = 10000
)

// ListUserData returns the caller's records through the list cache.
func (e *Engine) ListUserData(ctx context.Context, userID string) ([]UserData, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	key := e.keys.DataList(userID)

	var items []UserData
	if e.cache.Get(ctx, key, &items) && items != nil {
		return items, nil
	}

	fence := e.cache.Fence(key)
	rows, err := e.store.ListUserData(ctx, userID)
	if err != nil {
		return nil, e.storeError(ctx, "list_user_data", err)
	}
	items = make([]UserData, 0, len(rows))
	for i := range rows {
		items = append(items, userDataFromRecord(&rows[i]))
	}
	e.cache.SetFenced(ctx, key, items, e.cache.TTLs().Data, fence)
	return items, nil
}

// GetUserData returns one owned record. A record owned by someone else is ErrNotFound.
func (e *Engine) GetUserData(ctx context.Context, userID, id string) (*UserData, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	key := e.keys.DataItem(id)

	var item UserData
	if e.cache.Get(ctx, key, &item) && item.ID == id {
		if item.UserID != userID {
			return nil, ErrNotFound
		}
		return &item, nil
	}

	fence := e.cache.Fence(key)
	rec, err := e.store.GetUserData(ctx, userID, id)
	if err != nil {
		return nil, e.userDataError(ctx, "get_user_data", err)
	}
	item = userDataFromRecord(rec)
	e.cache.SetFenced(ctx, key, item, e.cache.TTLs().Data, fence)
	return &item, nil
}

// CreateUserData stores a new record and invalidates the owner's list.
func (e *Engine) CreateUserData(ctx context.Context, userID string, in UserDataInput) (*UserData, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	in, err := normalizeUserDataInput(in)
	if err != nil {
		return nil, err
	}

	rec := &store.UserData{UserID: userID, Title: in.Title, Content: in.Content}
	if err := e.store.CreateUserData(ctx, rec); err != nil {
		return nil, e.storeError(ctx, "create_user_data", err)
	}
	e.invalidateUserData(ctx, userID, rec.ID)

	item := userDataFromRecord(rec)
	return &item, nil
}

// UpdateUserData overwrites an owned record and invalidates both the item and the list.
func (e *Engine) UpdateUserData(ctx context.Context, userID, id string, in UserDataInput) (*UserData, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	in, err := normalizeUserDataInput(in)
	if err != nil {
		return nil, err
	}

	rec, err := e.store.UpdateUserData(ctx, userID, id, in.Title, in.Content)
	if err != nil {
		return nil, e.userDataError(ctx, "update_user_data", err)
	}
	e.invalidateUserData(ctx, userID, id)

	item := userDataFromRecord(rec)
	return &item, nil
}

// DeleteUserData removes an owned record and invalidates both the item and the list.
func (e *Engine) DeleteUserData(ctx context.Context, userID, id string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.store.DeleteUserData(ctx, userID, id); err != nil {
		return e.userDataError(ctx, "delete_user_data", err)
	}
	e.invalidateUserData(ctx, userID, id)
	return nil
}

func (e *Engine) invalidateUserData(ctx context.Context, userID, id string) {
	e.cache.Invalidate(ctx, e.keys.DataList(userID), e.keys.DataItem(id))
}

func (e *Engine) userDataError(ctx context.Context, op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return e.storeError(ctx, op, err)
}

func normalizeUserDataInput(in UserDataInput) (UserDataInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return in, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Title) > maxUserDataTitle {
		return in, fmt.Errorf("%w: title too long", ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Content) > maxUserDataContent {
		return in, fmt.Errorf("%w: content too long", ErrInvalidInput)
	}
	return in, nil
}
