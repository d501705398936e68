package document

import "github.com/meigma/nastydata/core"

// Tweets follow the JSON returned by the statuses/lookup API in extended mode
// and by NASTY, which mirrors it.

// Registry names of the Twitter kinds.
const (
	TwitterKind           = "twitter"
	NastyBatchTwitterKind = "nasty-batch-twitter"
)

const (
	standardAnalyzer = "standard_uax_url_email"
	englishAnalyzer  = "english_uax_url_email"
)

// twitterAnalysis defines the analyzers referenced by Twitter text fields.
// URLs and e-mail addresses are kept as single tokens.
func twitterAnalysis() map[string]any {
	return map[string]any{
		"analyzer": map[string]any{
			standardAnalyzer: map[string]any{
				"type":        "custom",
				"char_filter": []any{"html_strip"},
				"tokenizer":   "uax_url_email",
				"filter":      []any{"asciifolding", "lowercase"},
			},
			englishAnalyzer: map[string]any{
				"type":        "custom",
				"char_filter": []any{"html_strip"},
				"tokenizer":   "uax_url_email",
				"filter": []any{
					"asciifolding",
					"english_possessive_stemmer",
					"lowercase",
					"english_stop",
					"english_stemmer",
				},
			},
		},
		"filter": map[string]any{
			"english_possessive_stemmer": map[string]any{
				"type":     "stemmer",
				"language": "possessive_english",
			},
			"english_stop": map[string]any{
				"type":      "stop",
				"stopwords": "_english_",
			},
			"english_stemmer": map[string]any{
				"type":     "stemmer",
				"language": "english",
			},
		},
	}
}

func twitterIndexSettings() map[string]any {
	s := DefaultIndexSettings()
	s["index.mapping.nested_fields.limit"] = 100
	s["analysis"] = twitterAnalysis()
	return s
}

func twitterText() Field {
	return Text(
		IndexOptions("offsets"),
		IndexPhrases(false),
		TermVector("yes"),
		Analyzer(standardAnalyzer),
		SubField("english_analyzed", Text(Analyzer(englishAnalyzer))),
	)
}

var (
	twitterMediaStats = Properties{
		"r":   JSONString(StoredOnly()),
		"ttl": Integer(StoredOnly()),
	}

	twitterExtensions = Properties{
		"mediaStats": Object(twitterMediaStats),
	}

	twitterMediaColor = Properties{
		"palette": Nested(Properties{
			"rgb": Object(Properties{
				"red":   Short(StoredOnly()),
				"green": Short(StoredOnly()),
				"blue":  Short(StoredOnly()),
			}),
			"percentage": Float(StoredOnly()),
		}),
	}

	twitterIndicesText = Properties{
		"indices": Short(StoredOnly()),
		"text":    Keyword(StoredOnly()),
	}

	twitterRect = Properties{
		"x": Short(StoredOnly()),
		"y": Short(StoredOnly()),
		"h": Short(StoredOnly()),
		"w": Short(StoredOnly()),
	}

	twitterMediaSize = Properties{
		"h":      Short(StoredOnly()),
		"w":      Short(StoredOnly()),
		"resize": Keyword(StoredOnly()),
	}

	twitterMediaFeature = Properties{
		"faces": Nested(twitterRect),
	}

	twitterCallToAction = Properties{
		"url": Keyword(),
	}

	twitterMedia = Properties{
		"id":      Long(StoredOnly()),
		"id_str":  Keyword(StoredOnly()),
		"indices": Short(StoredOnly()),

		"media_url":       Keyword(StoredOnly()),
		"media_url_https": Keyword(StoredOnly()),
		"url":             Keyword(StoredOnly()),
		"display_url":     Keyword(StoredOnly()),
		"expanded_url":    Keyword(StoredOnly()),

		"type": Keyword(),
		"original_info": Object(Properties{
			"height":      Short(StoredOnly()),
			"width":       Short(StoredOnly()),
			"focus_rects": Nested(twitterRect),
		}),
		"sizes": Object(Properties{
			"thumb":  Object(twitterMediaSize),
			"large":  Object(twitterMediaSize),
			"medium": Object(twitterMediaSize),
			"small":  Object(twitterMediaSize),
		}),
		"source_status_id":     Long(StoredOnly()),
		"source_status_id_str": Keyword(),
		"source_user_id":       Long(StoredOnly()),
		"source_user_id_str":   Keyword(),
		"video_info": Object(Properties{
			"aspect_ratio":    Short(),
			"duration_millis": Integer(),
			"variants": Nested(Properties{
				"bitrate":      Integer(),
				"content_type": Keyword(),
				"url":          Keyword(StoredOnly()),
			}),
		}),
		"features": Object(Properties{
			"small":  Object(twitterMediaFeature),
			"medium": Object(twitterMediaFeature),
			"large":  Object(twitterMediaFeature),
			"orig":   Object(twitterMediaFeature),
		}),

		"media_key": Keyword(StoredOnly()),
		"ext_media_availability": Object(Properties{
			"status": Keyword(),
			"reason": Keyword(),
		}),
		"ext_alt_text":    Keyword(StoredOnly()),
		"ext_media_color": Object(twitterMediaColor),
		"ext":             Object(twitterExtensions),
		"additional_media_info": Object(Properties{
			"title":       Keyword(StoredOnly()),
			"description": Keyword(StoredOnly()),
			"call_to_actions": Object(Properties{
				"visit_site": Object(twitterCallToAction),
				"watch_now":  Object(twitterCallToAction),
			}),
			"embeddable":  Boolean(),
			"monetizable": Boolean(),
		}),
	}

	twitterEntities = Properties{
		"hashtags": Nested(twitterIndicesText),
		"symbols":  Nested(twitterIndicesText),
		"user_mentions": Nested(Properties{
			"id":          Long(StoredOnly()),
			"id_str":      Keyword(),
			"indices":     Short(StoredOnly()),
			"name":        Keyword(),
			"screen_name": Keyword(),
		}),
		"urls": Nested(Properties{
			"url":          Keyword(),
			"expanded_url": Keyword(),
			"display_url":  Keyword(),
			"indices":      Short(),
		}),
		"media": Nested(twitterMedia),
	}

	twitterCoordinates = Properties{
		"coordinates": JSONString(),
		"type":        Keyword(),
	}

	twitterPlace = Properties{
		"attributes":       Nested(nil),
		"bounding_box":     Object(twitterCoordinates),
		"contained_within": Nested(nil),
		"country":          Keyword(),
		"country_code":     Keyword(),
		"full_name":        Keyword(),
		"id":               Keyword(),
		"name":             Keyword(),
		"place_type":       Keyword(),
		"url":              Keyword(StoredOnly()),
	}
)

var twitterUser = Properties{
	"id":          Long(StoredOnly()),
	"id_str":      Keyword(),
	"name":        Keyword(),
	"screen_name": Keyword(),
	"location":    Keyword(),
	"description": twitterText(),
	"url":         Keyword(NoDocValues()),
	"entities": Object(Properties{
		"url":         Object(twitterEntities),
		"description": Object(twitterEntities),
	}),

	"protected":              Boolean(),
	"followers_count":        Integer(),
	"fast_followers_count":   Integer(),
	"normal_followers_count": Integer(),
	"friends_count":          Integer(),
	"listed_count":           Integer(),
	"created_at":             Date(),
	"favourites_count":       Integer(),
	"utc_offset":             Keyword(),
	"time_zone":              Keyword(),
	"geo_enabled":            Boolean(),
	"verified":               Boolean(),
	"statuses_count":         Integer(),
	"media_count":            Integer(),
	"lang":                   Keyword(),
	"contributors_enabled":   Boolean(),

	"is_translator":          Boolean(),
	"is_translation_enabled": Boolean(),
	"translator_type":        Keyword(),
	"withheld_in_countries":  Keyword(),

	"profile_background_color":                     Keyword(StoredOnly()),
	"profile_background_image_url":                 Keyword(StoredOnly()),
	"profile_background_image_url_https":           Keyword(StoredOnly()),
	"profile_background_tile":                      Boolean(),
	"profile_banner_extensions":                    Object(twitterExtensions),
	"profile_banner_extensions_alt_text":           Keyword(StoredOnly()),
	"profile_banner_extensions_media_availability": Keyword(StoredOnly()),
	"profile_banner_extensions_media_color":        Object(twitterMediaColor),
	"profile_banner_url":                           Keyword(StoredOnly()),
	"profile_image_extensions":                     Object(twitterExtensions),
	"profile_image_extensions_alt_text":            Keyword(StoredOnly()),
	"profile_image_extensions_media_availability":  Keyword(StoredOnly()),
	"profile_image_extensions_media_color":         Object(twitterMediaColor),
	"profile_image_url":                            Keyword(StoredOnly()),
	"profile_image_url_https":                      Keyword(StoredOnly()),
	"profile_link_color":                           Keyword(StoredOnly()),
	"profile_sidebar_border_color":                 Keyword(StoredOnly()),
	"profile_sidebar_fill_color":                   Keyword(StoredOnly()),
	"profile_text_color":                           Keyword(StoredOnly()),
	"profile_use_background_image":                 Boolean(),
	"has_extended_profile":                         Boolean(),
	"default_profile":                              Boolean(),
	"default_profile_image":                        Boolean(),
	"pinned_tweet_ids":                             Long(StoredOnly()),
	"pinned_tweet_ids_str":                         Keyword(StoredOnly()),

	"has_custom_timelines": Boolean(),

	// Only set for logged in users.
	"can_dm":              Boolean(),
	"can_media_tag":       Boolean(),
	"following":           Boolean(),
	"follow_request_sent": Boolean(),
	"notifications":       Boolean(),
	"muting":              Boolean(),
	"blocking":            Boolean(),
	"bocked_by":           Boolean(),
	"want_retweets":       Boolean(),
	"followed_by":         Boolean(),
	"ext": Object(Properties{
		"highlightedLabel": Object(twitterMediaStats),
	}),
	"is_lifeline_institution": Boolean(),

	"advertiser_account_type":           Keyword(),
	"advertiser_account_service_levels": Keyword(),
	"profile_interstitial_type":         Keyword(),
	"business_profile_state":            Keyword(),

	"require_some_consent": Boolean(),
}

var twitterMapping = Properties{
	"created_at": Date(),

	"id":     Long(StoredOnly()),
	"id_str": Keyword(StoredOnly()),

	"full_text": twitterText(),

	"truncated":          Boolean(),
	"display_text_range": Integer(StoredOnly()),

	"entities":          Object(twitterEntities),
	"extended_entities": Object(twitterEntities),

	"source": Keyword(),

	"in_reply_to_status_id":     Long(StoredOnly()),
	"in_reply_to_status_id_str": Keyword(),
	"in_reply_to_user_id":       Long(StoredOnly()),
	"in_reply_to_user_id_str":   Keyword(),
	"in_reply_to_screen_name":   Keyword(),
	"geo":                       Object(twitterCoordinates),
	"coordinates":               Object(twitterCoordinates),
	"place":                     Object(twitterPlace),
	"contributors":              Keyword(),
	"withheld_in_countries":     Keyword(),
	"is_quote_status":           Boolean(),
	"quoted_status_id":          Long(StoredOnly()),
	"quoted_status_id_str":      Keyword(),
	"quoted_status_permalink": Object(Properties{
		"url":      Keyword(StoredOnly()),
		"expanded": Keyword(StoredOnly()),
		"display":  Keyword(StoredOnly()),
	}),

	"retweet_count":  Integer(),
	"favorite_count": Integer(),
	"reply_count":    Integer(),

	"conversation_id":     Long(StoredOnly()),
	"conversation_id_str": Keyword(),

	"favorited":                   Boolean(),
	"retweeted":                   Boolean(),
	"possibly_sensitive":          Boolean(),
	"possibly_sensitive_editable": Boolean(),

	// Cards are niche and would add many fields, so they are kept as JSON.
	"card": JSONString(StoredOnly()),

	"scopes": Object(Properties{
		"place_ids": Keyword(),
	}),
	"lang":                  Keyword(),
	"supplemental_language": Keyword(),
	"self_thread": Object(Properties{
		"id":     Long(StoredOnly()),
		"id_str": Keyword(NoDocValues()),
	}),
	"ext": Object(Properties{
		"cameraMoment": Object(twitterMediaStats),
	}),

	"user": Object(twitterUser),
}

var nastyBatchMeta = Properties{
	"id": Keyword(),
	"request": Object(Properties{
		"type":       Keyword(),
		"query":      Keyword(),
		"since":      Date(),
		"until":      Date(),
		"filter":     Keyword(),
		"lang":       Keyword(),
		"max_tweets": Integer(),
		"batch_size": Integer(),
		"tweet_id":   Keyword(),
	}),
	"completed_at": Date(),
}

func prepareTwitter(doc core.Document) error {
	id, err := stringField(doc, "id_str")
	if err != nil {
		return err
	}
	doc[IDField] = id

	// The user a media item was originally posted by is a full user object,
	// which exceeds the nested field limit. source_user_id_str identifies it.
	ext, _ := doc["extended_entities"].(map[string]any)
	media, _ := ext["media"].([]any)
	for _, m := range media {
		m, _ := m.(map[string]any)
		if info, ok := m["additional_media_info"].(map[string]any); ok {
			delete(info, "source_user")
		}
	}
	return nil
}

// Twitter is the kind for tweets.
var Twitter = register(&kind{
	name:     TwitterKind,
	settings: twitterIndexSettings,
	props:    twitterMapping,
	prepare:  prepareTwitter,
})

// NastyBatchTwitter is Twitter with the NASTY batch a tweet was retrieved in.
var NastyBatchTwitter = register(&kind{
	name:      NastyBatchTwitterKind,
	settings:  twitterIndexSettings,
	props:     twitterMapping.With(Properties{"nasty_batch_meta": Object(nastyBatchMeta)}),
	prepare:   prepareTwitter,
	metaField: "nasty_batch_meta",
	metaID:    "id",
})
