package nntp

import "strconv"

// Kind is the meaning of a response code as defined by RFC 3977, RFC 4643,
// RFC 2980 and the XFEATURE extension.
type Kind int

const (
	KindUnknown Kind = iota

	KindHelpText
	KindCapabilities
	KindServerDate

	KindPostingAllowed
	KindPostingProhibited
	KindConnectionClosing
	KindGroupSelected
	KindListFollows
	KindArticle
	KindHead
	KindBody
	KindArticleExists
	KindOverviewFollows
	KindHeadersFollow
	KindNewArticlesFollow
	KindNewGroupsFollow
	KindArticleTransferredOK
	KindArticleReceivedOK
	KindAuthenticationAccepted
	KindXGTitleFollows
	KindXFeatureEnabled

	KindSendArticleToTransfer
	KindSendArticleToPost
	KindPasswordRequired

	KindServiceNotAvailable
	KindInternalFault
	KindNoSuchNewsgroup
	KindNoNewsgroupSelected
	KindInvalidCurrentArticleNumber
	KindNoNextArticle
	KindNoPreviousArticle
	KindNoArticleWithNumber
	KindNoArticleWithMessageID
	KindArticleNotWanted
	KindTransferNotPossible
	KindTransferRejected
	KindPostingNotPermitted
	KindPostingFailed
	KindAuthenticationRequired
	KindAuthenticationFailed
	KindAuthenticationOutOfSequence
	KindEncryptionRequired

	KindUnknownCommand
	KindSyntaxError
	KindPermanentlyUnavailable
	KindFeatureNotSupported
	KindBase64EncodingError
)

type kindInfo struct {
	code      uint16
	name      string
	multiline bool
}

var kinds = [...]kindInfo{
	KindUnknown: {0, "unknown", false},

	KindHelpText:     {100, "help text follows", true},
	KindCapabilities: {101, "capability list follows", true},
	KindServerDate:   {111, "server date and time", false},

	KindPostingAllowed:         {200, "service available, posting allowed", false},
	KindPostingProhibited:      {201, "service available, posting prohibited", false},
	KindConnectionClosing:      {205, "connection closing", false},
	KindGroupSelected:          {211, "group selected", false},
	KindListFollows:            {215, "information follows", true},
	KindArticle:                {220, "article follows", true},
	KindHead:                   {221, "headers follow", true},
	KindBody:                   {222, "body follows", true},
	KindArticleExists:          {223, "article exists", false},
	KindOverviewFollows:        {224, "overview information follows", true},
	KindHeadersFollow:          {225, "header fields follow", true},
	KindNewArticlesFollow:      {230, "list of new articles follows", true},
	KindNewGroupsFollow:        {231, "list of new newsgroups follows", true},
	KindArticleTransferredOK:   {235, "article transferred ok", false},
	KindArticleReceivedOK:      {240, "article received ok", false},
	KindAuthenticationAccepted: {281, "authentication accepted", false},
	KindXGTitleFollows:         {282, "list of groups and descriptions follows", true},
	KindXFeatureEnabled:        {290, "feature enabled", false},

	KindSendArticleToTransfer: {335, "send article to be transferred", false},
	KindSendArticleToPost:     {340, "send article to be posted", false},
	KindPasswordRequired:      {381, "password required", false},

	KindServiceNotAvailable:         {400, "service not available", false},
	KindInternalFault:               {403, "internal fault", false},
	KindNoSuchNewsgroup:             {411, "no such newsgroup", false},
	KindNoNewsgroupSelected:         {412, "no newsgroup selected", false},
	KindInvalidCurrentArticleNumber: {420, "current article number is invalid", false},
	KindNoNextArticle:               {421, "no next article in this group", false},
	KindNoPreviousArticle:           {422, "no previous article in this group", false},
	KindNoArticleWithNumber:         {423, "no article with that number", false},
	KindNoArticleWithMessageID:      {430, "no article with that message-id", false},
	KindArticleNotWanted:            {435, "article not wanted", false},
	KindTransferNotPossible:         {436, "transfer not possible, try again later", false},
	KindTransferRejected:            {437, "transfer rejected, do not retry", false},
	KindPostingNotPermitted:         {440, "posting not permitted", false},
	KindPostingFailed:               {441, "posting failed", false},
	KindAuthenticationRequired:      {480, "authentication required", false},
	KindAuthenticationFailed:        {481, "authentication failed", false},
	KindAuthenticationOutOfSequence: {482, "authentication commands issued out of sequence", false},
	KindEncryptionRequired:          {483, "encryption required", false},

	KindUnknownCommand:         {500, "unknown command", false},
	KindSyntaxError:            {501, "syntax error", false},
	KindPermanentlyUnavailable: {502, "service permanently unavailable", false},
	KindFeatureNotSupported:    {503, "feature not supported", false},
	KindBase64EncodingError:    {504, "error in base64-encoding of an argument", false},
}

var kindByCode = func() map[uint16]Kind {
	m := make(map[uint16]Kind, len(kinds))
	for k, info := range kinds {
		if info.code != 0 {
			m[info.code] = Kind(k)
		}
	}
	return m
}()

// KindOf classifies a numeric code. Unrecognised codes map to KindUnknown.
func KindOf(code uint16) Kind {
	if k, ok := kindByCode[code]; ok {
		return k
	}
	return KindUnknown
}

func (k Kind) valid() bool { return k >= 0 && int(k) < len(kinds) }

// Code returns the numeric code of a known kind, or 0 for KindUnknown.
func (k Kind) Code() uint16 {
	if !k.valid() {
		return 0
	}
	return kinds[k].code
}

// IsMultiline reports whether responses of this kind carry a data block
// section.
func (k Kind) IsMultiline() bool {
	return k.valid() && kinds[k].multiline
}

func (k Kind) String() string {
	if !k.valid() {
		return kinds[KindUnknown].name
	}
	return kinds[k].name
}

// ResponseCode is a three digit status code. Unknown codes are preserved.
type ResponseCode uint16

// Kind classifies the code.
func (c ResponseCode) Kind() Kind { return KindOf(uint16(c)) }

// IsKnown is false when the code is not in the table.
func (c ResponseCode) IsKnown() bool { return c.Kind() != KindUnknown }

// IsMultiline consults the code table.
func (c ResponseCode) IsMultiline() bool { return c.Kind().IsMultiline() }

// Is reports whether the code has the given kind.
func (c ResponseCode) Is(k Kind) bool { return k != KindUnknown && c.Kind() == k }

func (c ResponseCode) String() string {
	k := c.Kind()
	if k == KindUnknown {
		return strconv.Itoa(int(c)) + " (unknown)"
	}
	return strconv.Itoa(int(c)) + " (" + k.String() + ")"
}
