package document

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/meigma/nastydata/core"
)

// Reddit posts are indexed as unmodified as possible; the data format changed
// many times over the years and unification happens at read time instead.
// Text fields store offsets but no phrases to keep the index size in check.

// Registry names of the Reddit kinds.
const (
	RedditKind          = "reddit"
	PushshiftRedditKind = "pushshift-reddit"
)

// Reddit ID prefixes. Links are prefixed t1_, comments t3_.
const (
	redditLinkPrefix    = "t1_"
	redditCommentPrefix = "t3_"
)

func redditText() Field {
	return Text(
		IndexOptions("offsets"),
		IndexPhrases(false),
		TermVector("with_positions_offsets"),
		Analyzer("standard"),
	)
}

var (
	redditFlairRichtext = Properties{
		"a": Keyword(),
		"e": Keyword(),
		"t": redditText(),
		"u": Keyword(StoredOnly()),
	}

	redditAwardingResizedIcon = Properties{
		"height": Short(StoredOnly()),
		"url":    Keyword(StoredOnly()),
		"width":  Short(StoredOnly()),
	}

	redditAwarding = Properties{
		"award_type":             Keyword(),
		"coin_price":             Integer(),
		"coin_reward":            Integer(),
		"count":                  Integer(),
		"days_of_drip_extension": Integer(),
		"days_of_premium":        Integer(),
		"description":            redditText(),
		"end_date":               RedditDate(),
		"icon_height":            Short(StoredOnly()),
		"icon_url":               Keyword(StoredOnly()),
		"icon_width":             Short(StoredOnly()),
		"id":                     Keyword(),
		"is_enabled":             Boolean(),
		"name":                   Keyword(),
		"resized_icons":          Nested(redditAwardingResizedIcon),
		"start_date":             RedditDate(),
		"subreddit_coin_reward":  Integer(),
		"subreddit_id":           Keyword(),
	}

	redditGildings = Properties{
		"gid_1": Integer(),
		"gid_2": Integer(),
		"gid_3": Integer(),
	}

	redditMediaMetadata = Properties{
		"dashUrl": Keyword(StoredOnly()),
		"e":       Keyword(),
		"hlsUrl":  Keyword(StoredOnly()),
		"id":      Keyword(NoDocValues()),
		"isGif":   Boolean(),
		"m":       Keyword(),
		"s": Object(Properties{
			"u":   Keyword(StoredOnly()),
			"x":   Short(StoredOnly()),
			"y":   Short(StoredOnly()),
			"gif": Keyword(StoredOnly()),
			"mp4": Keyword(StoredOnly()),
		}),
		"status": Keyword(),
		"t":      Keyword(),
		"x":      Short(StoredOnly()),
		"y":      Short(StoredOnly()),
	}

	redditLinkMediaOEmbed = Properties{
		"author_name":      Keyword(),
		"author_url":       Keyword(),
		"cache_age":        Long(StoredOnly()),
		"description":      redditText(),
		"height":           Short(StoredOnly()),
		"html":             Keyword(StoredOnly()),
		"html5":            Keyword(StoredOnly()),
		"mean_alpha":       Float(StoredOnly()),
		"provider_name":    Keyword(),
		"provider_url":     Keyword(),
		"thumbnail_height": Short(StoredOnly()),
		"thumbnail_url":    Keyword(StoredOnly()),
		"thumbnail_size":   Short(StoredOnly()),
		"thumbnail_width":  Short(StoredOnly()),
		"title":            redditText(),
		"type":             Keyword(),
		"version":          Keyword(),
		"url":              Keyword(),
		"width":            Short(StoredOnly()),
	}

	redditLinkMediaRedditVideo = Properties{
		"dash_url":           Keyword(StoredOnly()),
		"duration":           Integer(),
		"fallback_url":       Keyword(StoredOnly()),
		"height":             Short(StoredOnly()),
		"hls_url":            Keyword(StoredOnly()),
		"is_gif":             Boolean(),
		"scrubber_media_url": Keyword(StoredOnly()),
		"transcoding_status": Keyword(),
		"width":              Boolean(),
	}

	redditLinkMedia = Properties{
		"content":      redditText(),
		"event_id":     Keyword(),
		"height":       Short(StoredOnly()),
		"oembed":       Object(redditLinkMediaOEmbed),
		"reddit_video": Object(redditLinkMediaRedditVideo),
		"type":         Keyword(),
		"width":        Short(StoredOnly()),
	}

	redditLinkMediaEmbed = Properties{
		"content":          redditText(),
		"height":           Short(StoredOnly()),
		"media_domain_url": Keyword(StoredOnly()),
		"scrolling":        Boolean(),
		"width":            Short(StoredOnly()),
	}

	redditLinkPreviewImageResolution = Properties{
		"height": Short(StoredOnly()),
		"url":    Keyword(StoredOnly()),
		"width":  Short(StoredOnly()),
	}

	redditLinkPreviewImageVariant = Properties{
		"resolutions": Nested(redditLinkPreviewImageResolution),
		"source":      Object(redditLinkPreviewImageResolution),
	}

	redditLinkPreviewImage = Properties{
		"id":          Keyword(StoredOnly()),
		"resolutions": Nested(redditLinkPreviewImageResolution),
		"source":      Object(redditLinkPreviewImageResolution),
		"variants": Object(Properties{
			"gif":        Object(redditLinkPreviewImageVariant),
			"mp4":        Object(redditLinkPreviewImageVariant),
			"nsfw":       Object(redditLinkPreviewImageVariant),
			"obfuscated": Object(redditLinkPreviewImageVariant),
		}),
	}

	redditLinkPreview = Properties{
		"enabled":              Boolean(),
		"images":               Nested(redditLinkPreviewImage),
		"reddit_video_preview": Object(redditLinkMediaRedditVideo),
	}

	redditLinkCollection = Properties{
		"author_id":       Keyword(),
		"author_name":     Keyword(),
		"collection_id":   Keyword(NoDocValues()),
		"created_at_utc":  RedditDate(),
		"description":     redditText(),
		"display_layout":  Keyword(),
		"last_update_utc": RedditDate(),
		"link_ids":        Keyword(NoDocValues()),
		"permalink":       Keyword(StoredOnly()),
		"subreddit_id":    Keyword(),
		"title":           redditText(),
	}

	redditLinkOutboundLink = Properties{
		"created":    RedditDateMillis(),
		"expiration": RedditDateMillis(),
		"url":        Keyword(StoredOnly()),
	}
)

// redditBase holds the fields shared by links and comments.
var redditBase = Properties{
	"id":        Keyword(StoredOnly()),
	"name":      Keyword(StoredOnly()),
	"permalink": Keyword(StoredOnly()),

	// doc_values stay enabled on created; Kibana cannot handle them disabled.
	"created":      RedditDate(NoIndex()),
	"created_utc":  RedditDate(),
	"edited":       RedditDate(),
	"retrieved_on": RedditDate(),

	"author":                        Keyword(),
	"author_cakeday":                Boolean(),
	"author_created_utc":            RedditDate(),
	"author_flair_background_color": Keyword(StoredOnly()),
	"author_flair_css_class":        Keyword(),
	"author_flair_richtext":         Nested(redditFlairRichtext),
	"author_flair_template_id":      Keyword(),
	"author_flair_text":             redditText(),
	"author_flair_text_color":       Keyword(StoredOnly()),
	"author_flair_type":             Keyword(),
	"author_fullname":               Keyword(),
	"author_id":                     Keyword(),
	"author_patreon_flair":          Keyword(),
	"author_premium":                Boolean(),
	"distinguished":                 Keyword(),

	"all_awardings":         Nested(redditAwarding),
	"associated_award":      Keyword(),
	"awarders":              Nested(nil),
	"can_gild":              Boolean(),
	"gildings":              Object(redditGildings),
	"gilded":                Integer(),
	"total_awards_received": Integer(),

	"downs":        Integer(),
	"score":        Integer(),
	"score_hidden": Boolean(),
	"ups":          Integer(),

	"subreddit":               Keyword(),
	"subreddit_name_prefixed": Keyword(),
	"subreddit_id":            Keyword(),
	"subreddit_subscribers":   Integer(),
	"subreddit_type":          Keyword(),

	"media_metadata": Nested(redditMediaMetadata),

	"archived": Boolean(),
	"stickied": Boolean(),
	"locked":   Boolean(),

	"rte_mode": Keyword(),

	"saved": Boolean(),
	"likes": Integer(),

	"mod_note":         Keyword(),
	"mod_reason_by":    Keyword(),
	"mod_reason_title": Keyword(),
	"approved":         Boolean(),
	"approved_at_utc":  RedditDate(),
	"approved_by":      Keyword(),
	"banned_at_utc":    RedditDate(),
	"banned_by":        Keyword(),
	"ban_note":         Keyword(),
	"mod_reports":      Nested(nil),
	"num_reports":      Integer(),
	"report_reasons":   Keyword(),
	"user_reports":     Nested(nil),
	"steward_reports":  Nested(nil),

	"can_mod_post":   Boolean(),
	"no_follow":      Boolean(),
	"removal_reason": Keyword(),
	"send_replies":   Boolean(),
}

var redditLink = Properties{
	"domain": Keyword(),
	"url":    Keyword(),

	"title":         redditText(),
	"selftext":      redditText(),
	"selftext_html": Keyword(StoredOnly()),

	"link_flair_background_color": Keyword(StoredOnly()),
	"link_flair_css_class":        Keyword(),
	"link_flair_richtext":         Nested(redditFlairRichtext),
	"link_flair_template_id":      Keyword(),
	"link_flair_text":             redditText(),
	"link_flair_text_color":       Keyword(StoredOnly()),
	"link_flair_type":             Keyword(),

	"media":              Object(redditLinkMedia),
	"media_embed":        Object(redditLinkMediaEmbed),
	"secure_media":       Object(redditLinkMedia),
	"secure_media_embed": Object(redditLinkMediaEmbed),
	"preview":            Object(redditLinkPreview),
	"thumbnail":          Keyword(StoredOnly()),
	"thumbnail_width":    Short(StoredOnly()),
	"thumbnail_height":   Short(StoredOnly()),

	"collections": Nested(redditLinkCollection),

	// crosspost_parent_list is dropped in prepareRedditLink.
	"crosspost_parent": Keyword(),

	"allow_live_comments":    Boolean(),
	"brand_safe":             Boolean(),
	"contest_mode":           Boolean(),
	"disable_comments":       Boolean(),
	"hide_score":             Boolean(),
	"is_blank":               Boolean(),
	"is_crosspostable":       Boolean(),
	"is_meta":                Boolean(),
	"is_original_content":    Boolean(),
	"is_reddit_media_domain": Boolean(),
	"is_robot_indexable":     Boolean(),
	"is_self":                Boolean(),
	"is_video":               Boolean(),
	"media_only":             Boolean(),
	"over_18":                Boolean(),
	"pinned":                 Boolean(),
	"quarantine":             Boolean(),
	"spoiler":                Boolean(),

	"category":           Keyword(),
	"content_categories": Keyword(),
	"discussion_type":    Keyword(),
	"post_categories":    Keyword(),
	"post_hint":          Keyword(),
	"suggested_sort":     Keyword(),

	"previous_visits": RedditDate(),
	"view_count":      Integer(),

	"whitelist_status":        Keyword(),
	"wls":                     Short(),
	"parent_whitelist_status": Keyword(),
	"pwls":                    Short(),

	"num_comments":   Integer(),
	"num_crossposts": Integer(),

	"event_is_live": Boolean(),
	"event_start":   RedditDate(),
	"event_end":     RedditDate(),

	// Promotions.
	"call_to_action":         Keyword(),
	"domain_override":        Keyword(),
	"embed_type":             Keyword(),
	"embed_url":              Keyword(),
	"href_url":               Keyword(),
	"mobile_ad_url":          Keyword(StoredOnly()),
	"outbound_link":          Object(redditLinkOutboundLink),
	"promoted":               Boolean(),
	"promoted_by":            Long(),
	"show_media":             Boolean(),
	"third_party_trackers":   Keyword(StoredOnly()),
	"third_party_tracking":   Keyword(StoredOnly()),
	"third_party_tracking_2": Keyword(StoredOnly()),

	// Require a logged in user.
	"hidden":  Boolean(),
	"clicked": Boolean(),
	"visited": Boolean(),

	// Require a moderator.
	"ignore_reports": Boolean(),
	"removed":        Boolean(),
	"spam":           Boolean(),

	"from":      Keyword(),
	"from_id":   Keyword(),
	"from_kind": Keyword(),
}

var redditComment = Properties{
	"link_id":       Keyword(),
	"parent_id":     Keyword(),
	"permalink_url": Keyword(StoredOnly()),

	"body":      redditText(),
	"body_html": Keyword(StoredOnly()),

	"controversiality": Integer(),
	"is_submitter":     Boolean(),
	"quarantined":      Boolean(),

	"collapsed":                       Boolean(),
	"collapsed_reason":                Keyword(),
	"collapsed_because_crowd_control": Boolean(),

	"replies": Keyword(),
}

// redditMapping covers both links and comments, which share one index.
var redditMapping = redditBase.With(redditLink).With(redditComment)

var pushshiftDumpMeta = Properties{
	"dump_file": Keyword(),
	"dump_type": Keyword(),
	"dump_date": Date(),
}

var (
	errLinkAndComment = errors.New("post appears to be both link and comment")
	errNeitherLinkNor = errors.New("could not determine whether post is link or comment")
)

// prepareReddit dispatches on whether doc is a link (has a title) or a
// comment (has a body).
func prepareReddit(doc core.Document) error {
	_, hasTitle := doc["title"]
	_, hasBody := doc["body"]
	switch {
	case hasTitle && hasBody:
		return errLinkAndComment
	case hasTitle:
		return prepareRedditLink(doc)
	case hasBody:
		return prepareRedditComment(doc)
	default:
		return errNeitherLinkNor
	}
}

func prepareRedditBase(doc core.Document) {
	// media_metadata maps arbitrary IDs to objects, which would add a field per
	// ID. The objects carry their ID themselves, so a list loses nothing.
	if mm, ok := doc["media_metadata"].(map[string]any); ok && len(mm) > 0 {
		list := make([]any, 0, len(mm))
		for _, key := range slices.Sorted(maps.Keys(mm)) {
			list = append(list, mm[key])
		}
		doc["media_metadata"] = list
	}
}

func prepareRedditLink(doc core.Document) error {
	prepareRedditBase(doc)
	id, err := stringField(doc, "id")
	if err != nil {
		return err
	}
	doc[IDField] = redditLinkPrefix + id
	// The full cross-posted parent is reachable through crosspost_parent.
	delete(doc, "crosspost_parent_list")
	return nil
}

func prepareRedditComment(doc core.Document) error {
	prepareRedditBase(doc)
	id, err := stringField(doc, "id")
	if err != nil {
		return err
	}
	doc[IDField] = redditCommentPrefix + id
	return nil
}

func stringField(doc core.Document, key string) (string, error) {
	v, ok := doc[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q: expected string, got %T", key, v)
	}
	return s, nil
}

// Reddit is the kind for Reddit links and comments.
var Reddit = register(&kind{
	name:    RedditKind,
	props:   redditMapping,
	prepare: prepareReddit,
})

// PushshiftReddit is Reddit with the Pushshift dump a post was read from.
var PushshiftReddit = register(&kind{
	name:      PushshiftRedditKind,
	props:     redditMapping.With(Properties{"pushshift_dump_meta": Object(pushshiftDumpMeta)}),
	prepare:   prepareReddit,
	metaField: "pushshift_dump_meta",
	metaID:    "dump_file",
})
