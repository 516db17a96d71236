package domain

import "errors"

// ErrProviderBusy indicates all nntp connections are in use
var ErrProviderBusy = errors.New("all providers busy")

// ErrArticleNotFound indicates a 430 or 423 response from Usenet
var ErrArticleNotFound = errors.New("article not found")

// ErrNoSuchGroup indicates a 411 response
var ErrNoSuchGroup = errors.New("no such newsgroup")

// ErrPostingNotPermitted indicates a 440 response or a 201 greeting
var ErrPostingNotPermitted = errors.New("posting not permitted")
